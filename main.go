package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/internal/database"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/repository"
	"github.com/customeros/dmarcwatch/server"
	"github.com/customeros/dmarcwatch/services"
)

func main() {
	app := &cli.App{
		Name:           "dmarcwatch",
		Usage:          "monitor DMARC aggregate reports and alert on authentication issues",
		DefaultCommand: "server",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "start the scheduler and maintenance API",
				Action: runServer,
			},
			{
				Name:   "run",
				Usage:  "check the mailbox once and exit",
				Action: runOnce,
			},
			{
				Name:   "migrate",
				Usage:  "run database migrations",
				Action: runMigrate,
			},
			{
				Name:  "purge",
				Usage: "delete reports older than the retention window",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "retention-days",
						Usage: "override the configured retention period",
					},
				},
				Action: runPurge,
			},
			{
				Name:   "stats",
				Usage:  "print database statistics",
				Action: runStats,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config initialization failed: %w", err)
	}

	db, err := database.NewConnection(cfg.DatabaseConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("database initialization failed: %w", err)
	}

	return cfg, db, nil
}

func runServer(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	if err := repository.MigrateDB(db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("DmarcWatch starting up...")

	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}

	if err := srv.Run(); err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func runOnce(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	if err := repository.MigrateDB(db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	repos := repository.InitRepositories(db, cfg.DatabaseConfig.Path)
	svcs := services.InitServices(cfg, appLogger, repos)

	summary, err := svcs.MonitorService.Run(context.Background())
	if err != nil {
		return fmt.Errorf("mailbox check failed: %w", err)
	}

	return printJSON(summary)
}

func runMigrate(c *cli.Context) error {
	_, db, err := setup()
	if err != nil {
		return err
	}

	if err := repository.MigrateDB(db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}

	log.Println("Database migration completed successfully")
	return nil
}

func runPurge(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	retentionDays := cfg.RetentionConfig.RetentionDays
	if c.Int("retention-days") > 0 {
		retentionDays = c.Int("retention-days")
	}

	repos := repository.InitRepositories(db, cfg.DatabaseConfig.Path)
	stats, err := repos.ReportRepository.Purge(context.Background(), retentionDays)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	return printJSON(stats)
}

func runStats(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	repos := repository.InitRepositories(db, cfg.DatabaseConfig.Path)
	stats, err := repos.ReportRepository.DatabaseStats(context.Background())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	return printJSON(stats)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
