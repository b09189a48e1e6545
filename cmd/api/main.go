package main

import (
	"context"
	"os"

	"histfit/adapters/memory"
	"histfit/adapters/postgres"
	"histfit/app"
	"histfit/internal"
	"histfit/internal/config"
	"histfit/internal/fitter"
	"histfit/internal/scan"
	"histfit/ports"
	"histfit/ui"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := internal.DefaultLogger

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration: %v", err)
		os.Exit(1)
	}

	var store ports.ResultStorePort
	if cfg.Database.URL != "" {
		db, err := postgres.Connect(cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database: %v", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(context.Background(), db); err != nil {
			logger.Error("failed to migrate database: %v", err)
			os.Exit(1)
		}
		store = postgres.NewResultRepository(db)
		logger.Info("using postgres result store")
	} else {
		store = memory.NewResultStore()
		logger.Warn("DATABASE_URL not set, results are kept in memory only")
	}

	f := fitter.New(
		fitter.WithMaxIterations(cfg.Fit.MaxIterations),
		fitter.WithTolerance(cfg.Fit.Tolerance),
	)
	driver := scan.New(f, scan.WithParallelism(cfg.Scan.Parallelism))

	server := ui.NewServer(
		app.NewFitService(f, store),
		app.NewScanService(driver, store),
		store,
	)

	if err := server.ListenAndServe(cfg.Server.Port); err != nil {
		logger.Error("server stopped: %v", err)
		os.Exit(1)
	}
}
