package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/customeros/dmarcwatch/internal/database"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:          &AppConfig{},
		Logger:             &logger.Config{},
		Tracing:            &tracing.JaegerConfig{},
		DatabaseConfig:     &database.DatabaseConfig{},
		IMAPConfig:         &IMAPConfig{},
		SMTPConfig:         &SMTPConfig{},
		AnthropicConfig:    &AnthropicConfig{},
		MonitorConfig:      &MonitorConfig{},
		Thresholds:         &Thresholds{},
		NotificationConfig: &NotificationConfig{},
		RetentionConfig:    &RetentionConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading dmarcwatch config: %v", err)
	}

	return config, nil
}
