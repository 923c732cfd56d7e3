package database

import (
	"fmt"
	"time"

	"firecontest-backend/config"
	"firecontest-backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to PostgreSQL and applies the pool limits from cfg.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := OpenWith(postgres.Open(cfg.URL))
	if err != nil {
		return nil, err
	}
	if err := ConfigurePool(db, cfg); err != nil {
		_ = Close(db)
		return nil, err
	}
	return db, nil
}

// ConfigurePool sets connection pool limits. Zero values are skipped.
func ConfigurePool(db *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}

// OpenWith opens any dialector with the settings the services rely on:
// duplicate-key errors translated to gorm.ErrDuplicatedKey and UTC timestamps.
func OpenWith(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table plus the partial index that allows
// only one pending or successful payment per user and contest.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.Contest{},
		&models.Participant{},
		&models.JoinRecord{},
		&models.Payment{},
		&models.Announcement{},
		&models.Highlight{},
		&models.Setting{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_active_pair
		ON payments (user_id, contest_id) WHERE status IN ('pending', 'success')`).Error; err != nil {
		return fmt.Errorf("failed to create active payment index: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
