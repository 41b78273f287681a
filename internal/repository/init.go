package repository

import (
	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/models"
)

type Repositories struct {
	ReportRepository interfaces.ReportRepository
	AlertRepository  interfaces.AlertRepository
}

func InitRepositories(db *gorm.DB, dbPath string) *Repositories {
	return &Repositories{
		ReportRepository: NewReportRepository(db, dbPath),
		AlertRepository:  NewAlertRepository(db),
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Report{},
		&models.Record{},
		&models.Analysis{},
		&models.AlertHistory{},
	)
}
