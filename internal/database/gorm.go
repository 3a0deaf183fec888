package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"zns-gateway/internal/config"
	"zns-gateway/internal/models"
)

// Open connects to postgres or sqlite per DB_DRIVER and migrates the schema.
func Open(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		dialector = postgres.Open(dsn)
	case "memory":
		return OpenInMemory()
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DBPath + "?_foreign_keys=on")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLevel(log.GetLevel()),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DBDriver, err)
	}
	log.WithField("driver", cfg.DBDriver).Info("connected to database")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database migration completed")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migration: %w", err)
	}
	return nil
}

// SeedConfig creates the default company's BOM config from the environment
// when that company has none yet. An existing row always wins over env.
func SeedConfig(db *gorm.DB, cfg *config.Config, log *logrus.Logger) error {
	if cfg.BOMAPIKey == "" || cfg.BOMAPISecret == "" {
		return nil
	}

	var existing models.Config
	err := db.Where("company_id = ?", cfg.DefaultCompanyID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	seed := models.Config{
		CompanyID: cfg.DefaultCompanyID,
		Name:      "BOM ZNS Configuration",
		APIKey:    cfg.BOMAPIKey,
		APISecret: cfg.BOMAPISecret,
		BaseURL:   cfg.BOMDefaultBaseURL,
		Active:    true,
	}
	if err := db.Create(&seed).Error; err != nil {
		return fmt.Errorf("seed config: %w", err)
	}
	log.WithField("company_id", cfg.DefaultCompanyID).Info("BOM config seeded from environment")
	return nil
}

func gormLevel(l logrus.Level) logger.LogLevel {
	switch {
	case l >= logrus.DebugLevel:
		return logger.Info
	case l >= logrus.WarnLevel:
		return logger.Warn
	default:
		return logger.Error
	}
}

// OpenInMemory returns a migrated private sqlite database, used by tests and
// the local demo mode.
func OpenInMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Tables returns the table name of every migrated model, parents first.
func Tables(db *gorm.DB) ([]string, error) {
	var names []string
	for _, m := range models.All() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("parse %T: %w", m, err)
		}
		names = append(names, stmt.Schema.Table)
	}
	return names, nil
}

// SyncSequences moves each postgres id sequence past the table's max id, as
// needed after rows were copied in with explicit ids.
func SyncSequences(db *gorm.DB, log *logrus.Logger) error {
	tables, err := Tables(db)
	if err != nil {
		return err
	}
	for _, table := range tables {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			log.WithError(err).WithField("table", table).Error("error syncing sequence")
			continue
		}
		log.WithField("table", table).Info("sequence synced")
	}
	return nil
}
