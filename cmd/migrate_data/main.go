package main

import (
	"context"
	"fmt"
	"reflect"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"zns-gateway/internal/config"
	"zns-gateway/internal/database"
	zlog "zns-gateway/internal/logger"
	"zns-gateway/internal/models"
)

// Copies every ZNS table from the sqlite file at DB_PATH into the postgres
// database configured by DB_HOST and friends, then syncs the id sequences.
func main() {
	cfg := config.LoadConfig()
	log := zlog.New(cfg.LogLevel, cfg.LogFormat)

	sqliteDB, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to SQLite")
	}
	log.WithField("path", cfg.DBPath).Info("connected to SQLite")

	cfg.DBDriver = "postgres"
	pgDB, err := database.Open(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to PostgreSQL")
	}

	log.Info("starting data migration")
	for _, m := range models.All() {
		n, err := copyTable(sqliteDB, pgDB, m)
		if err != nil {
			log.WithError(err).Errorf("error migrating %T", m)
			continue
		}
		log.WithField("rows", n).Infof("migrated %T", m)
	}

	if err := database.SyncSequences(pgDB, log); err != nil {
		log.WithError(err).Fatal("sequence sync failed")
	}
	log.Info("migration completed")
}

// copyTable reads all rows of model's table from src and inserts them into
// dst in batches, keeping their ids.
func copyTable(src, dst *gorm.DB, model any) (int, error) {
	sliceType := reflect.SliceOf(reflect.TypeOf(model).Elem())
	rows := reflect.New(sliceType)
	if err := src.Find(rows.Interface()).Error; err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	n := rows.Elem().Len()
	if n == 0 {
		return 0, nil
	}
	stmt := &gorm.Statement{DB: dst}
	if err := stmt.Parse(model); err != nil {
		return 0, err
	}
	var defaulted []*schema.Field
	for _, f := range stmt.Schema.Fields {
		if f.HasDefaultValue && f.DBName != "" && !f.PrimaryKey {
			defaulted = append(defaulted, f)
		}
	}

	err := dst.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).CreateInBatches(rows.Interface(), 500).Error; err != nil {
			return err
		}
		if len(defaulted) == 0 {
			return nil
		}
		// column defaults replaced zero values on insert; restore them
		ctx := context.Background()
		for i := 0; i < n; i++ {
			row := rows.Elem().Index(i)
			values := make(map[string]any, len(defaulted))
			for _, f := range defaulted {
				v, _ := f.ValueOf(ctx, row)
				values[f.DBName] = v
			}
			if err := tx.Model(row.Addr().Interface()).UpdateColumns(values).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	return n, nil
}
