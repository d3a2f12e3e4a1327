package config

import (
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lsurma/data-manager/internal/db"
)

// Config is the full application configuration.
type Config struct {
	Database db.Config
	Server   ServerConfig
	Sync     SyncConfig
	Auth     AuthConfig
	Webhook  WebhookConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
}

// SyncConfig drives the background materialization and indexing sweeps.
type SyncConfig struct {
	// MaterializeSchedule is a cron expression; empty disables the job.
	MaterializeSchedule string
	BatchSize           int
}

// AuthConfig lists identities granted unrestricted access.
type AuthConfig struct {
	AdminIdentities []string
}

// WebhookConfig sizes the delivery worker pool.
type WebhookConfig struct {
	Workers        int
	TimeoutSeconds int
}

// DefaultConfig returns the configuration used when no file or env vars are
// present.
func DefaultConfig() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Sync: SyncConfig{
			MaterializeSchedule: "@every 5m",
			BatchSize:           250,
		},
		Webhook: WebhookConfig{
			Workers:        3,
			TimeoutSeconds: 10,
		},
	}
}

// Load reads config.yaml from configPath and applies DM_-prefixed environment
// overrides (e.g. DM_DATABASE_HOST). Missing files fall back to defaults.
func Load(configPath string, logger *zap.Logger) (Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		configPath = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("DM")

	v.BindEnv("database.host", "DM_DATABASE_HOST")
	v.BindEnv("database.port", "DM_DATABASE_PORT")
	v.BindEnv("database.user", "DM_DATABASE_USER")
	v.BindEnv("database.password", "DM_DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DM_DATABASE_DBNAME")
	v.BindEnv("database.sslmode", "DM_DATABASE_SSLMODE")
	v.BindEnv("server.port", "DM_SERVER_PORT")
	v.BindEnv("sync.materialize_schedule", "DM_SYNC_MATERIALIZE_SCHEDULE")
	v.BindEnv("sync.batch_size", "DM_SYNC_BATCH_SIZE")
	v.BindEnv("webhook.workers", "DM_WEBHOOK_WORKERS")
	v.BindEnv("webhook.timeout_seconds", "DM_WEBHOOK_TIMEOUT_SECONDS")

	if err := v.ReadInConfig(); err != nil {
		logger.Info("No config.yaml found, using defaults and env vars")
	} else {
		logger.Info("Loaded config.yaml", zap.String("file", v.ConfigFileUsed()))
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("sync.materialize_schedule") {
		cfg.Sync.MaterializeSchedule = v.GetString("sync.materialize_schedule")
	}
	if v.IsSet("sync.batch_size") {
		cfg.Sync.BatchSize = v.GetInt("sync.batch_size")
	}
	if v.IsSet("auth.admin_identities") {
		cfg.Auth.AdminIdentities = v.GetStringSlice("auth.admin_identities")
	}
	if v.IsSet("webhook.workers") {
		cfg.Webhook.Workers = v.GetInt("webhook.workers")
	}
	if v.IsSet("webhook.timeout_seconds") {
		cfg.Webhook.TimeoutSeconds = v.GetInt("webhook.timeout_seconds")
	}

	return cfg, nil
}
