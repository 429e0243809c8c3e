package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"saas-billing/internal/domain/billing"
	"saas-billing/internal/domain/plans"
	"saas-billing/internal/domain/users"
)

// Open connects to postgres and applies migrations.
func Open(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logger.Info("database connected and migrated")
	return db, nil
}

// Migrate creates the billing tables. It is dialect-neutral so tests can run
// it against sqlite.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&users.User{},
		&plans.CatalogEntry{},
		&billing.Subscription{},
		&billing.Payment{},
		&billing.WebhookEvent{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// at most one active subscription per user
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_one_active_per_user
		ON subscriptions (user_id) WHERE status = 'active'`).Error; err != nil {
		return fmt.Errorf("create active subscription index: %w", err)
	}
	return nil
}
