package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"* * * * *"`
	// Retention sweep, Sundays at 03:30
	CronScheduleRetentionPurge string `env:"CRON_SCHEDULE_RETENTION_PURGE" envDefault:"30 3 * * 0"`
}
