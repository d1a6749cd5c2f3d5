package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

// buildPostgresDSN assembles a keyword/value conninfo string. Connection
// parameters and options share one namespace in libpq, so everything is
// merged and emitted in sorted order.
func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	settings := map[string]string{
		"host":             "localhost",
		"port":             "5432",
		"sslmode":          "disable",
		"application_name": "easylesson",
		"user":             cfg.User,
		"dbname":           cfg.Name,
	}
	if cfg.Host != "" {
		settings["host"] = cfg.Host
	}
	if cfg.Port != 0 {
		settings["port"] = fmt.Sprintf("%d", cfg.Port)
	}
	if cfg.Password != "" {
		settings["password"] = cfg.Password
	}

	return strings.Join(mergeOptions(settings, cfg.Options), " "), nil
}
