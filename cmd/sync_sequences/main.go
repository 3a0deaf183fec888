package main

import (
	"zns-gateway/internal/config"
	"zns-gateway/internal/database"
	"zns-gateway/internal/logger"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.DBDriver != "postgres" {
		log.Fatal("sequence sync only applies to DB_DRIVER=postgres")
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}

	log.Info("syncing PostgreSQL sequences")
	if err := database.SyncSequences(db, log); err != nil {
		log.WithError(err).Fatal("sequence sync failed")
	}
	log.Info("done")
}
