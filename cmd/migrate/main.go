package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/iliyamo/field-booking/internal/config"
	"github.com/iliyamo/field-booking/internal/database"
	"github.com/iliyamo/field-booking/internal/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	if cfg.DB.IsMemory() {
		fmt.Fprintln(os.Stderr, "DB_DRIVER=memory has nothing to migrate")
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	db, err := database.Open(database.Options{
		User: cfg.DB.User,
		Pass: cfg.DB.Pass,
		Host: cfg.DB.Host,
		Port: cfg.DB.Port,
		Name: cfg.DB.Name,
	})
	requireResource(ctx, logg, "database", err)
	defer db.Close()

	switch *cmd {
	case "up", "down", "status", "version", "redo", "reset":
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}

	logg.Info(ctx, "migrate ready")
	if err := database.Migrate(ctx, db, *cmd, flag.Args()...); err != nil {
		fmt.Fprintf(os.Stderr, "goose %s failed: %v\n", *cmd, err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
