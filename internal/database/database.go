// Package database opens the GORM connection and owns the schema: embedded
// SQL migrations for PostgreSQL and AutoMigrate for SQLite and development.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"breaksphere/internal/config"
	"breaksphere/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectOptions controls what Connect does after the connection is open.
type ConnectOptions struct {
	ApplySchema bool
}

// Connect opens the configured database and applies the schema policy.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
}

// ConnectWithOptions opens and pings the configured database.
func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	db, err := gorm.Open(dialector(cfg), &gorm.Config{Logger: NewGormLogger(middleware.Logger)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName(cfg), err)
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, fmt.Errorf("configure pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sqlDB, _ := db.DB()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", driverName(cfg), err)
	}
	middleware.Logger.Info("Database connected", slog.String("driver", db.Dialector.Name()))

	if opts.ApplySchema {
		if err := ApplySchema(context.Background(), db, cfg); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}

func driverName(cfg *config.Config) string {
	if cfg.DBDriver == "sqlite" {
		return "sqlite"
	}
	return "postgres"
}

func dialector(cfg *config.Config) gorm.Dialector {
	if cfg.DBDriver == "sqlite" {
		path := cfg.DBSQLitePath
		if path == "" {
			path = "breaksphere.db"
		}
		return sqlite.Open(path + "?_foreign_keys=on&_busy_timeout=5000")
	}
	return postgres.Open(postgresDSN(cfg))
}

// postgresDSN renders a postgres:// URL so credentials are escaped.
func postgresDSN(cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     cfg.DBHost + ":" + cfg.DBPort,
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

type poolSettings struct {
	maxOpen, maxIdle int
	lifetime         time.Duration
}

func poolFor(cfg *config.Config) poolSettings {
	p := poolSettings{maxOpen: 25, maxIdle: 5, lifetime: 5 * time.Minute}
	if cfg.DBMaxOpenConns > 0 {
		p.maxOpen = cfg.DBMaxOpenConns
	}
	if cfg.DBMaxIdleConns > 0 {
		p.maxIdle = cfg.DBMaxIdleConns
	}
	if cfg.DBConnMaxLifetimeMinutes > 0 {
		p.lifetime = time.Duration(cfg.DBConnMaxLifetimeMinutes) * time.Minute
	}
	return p
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	p := poolFor(cfg)
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxLifetime(p.lifetime)
	return nil
}
