// Package database handles database connections and migrations.
package database

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"ripple/internal/config"
	"ripple/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the primary database connection and runs migrations.
// Under APP_ENV=test an in-memory sqlite database is used so the test suite
// does not need a running Postgres instance.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Env == "test" {
		return ConnectTest()
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database connected successfully")
	return db, nil
}

var testDBSeq atomic.Int64

// ConnectTest opens a fresh, migrated in-memory sqlite database. Each call
// gets its own database so tests stay isolated; cache=shared keeps the
// schema visible across the pool's connections.
func ConnectTest() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:ripple_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs auto-migrations for all registered models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
