package main

import (
	"context"
	"io/fs"
	"os"

	"github.com/tiagofur/ordo-todo-sub018/internal/config"
	"github.com/tiagofur/ordo-todo-sub018/internal/db"
	"github.com/tiagofur/ordo-todo-sub018/internal/logger"
	"github.com/tiagofur/ordo-todo-sub018/migrations"
)

func main() {
	cfg, err := config.Load()
	log := logger.New(cfg.LogPrefix)
	if err != nil {
		log.Fatal("load config", "error", err)
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal("open database", "error", err)
	}
	defer database.Close()

	var source fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		source = os.DirFS(cfg.MigrationsDir)
	}

	applied, err := db.RunMigrations(context.Background(), database, source)
	for _, name := range applied {
		log.Info("applied migration", "name", name)
	}
	if err != nil {
		log.Fatal("run migrations", "error", err)
	}
	log.Info("schema up to date", "db", cfg.DBPath, "applied", len(applied))
}
