package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/mediacatalog/internal/app"
	"github.com/dmitrijs2005/mediacatalog/internal/buildinfo"
	"github.com/dmitrijs2005/mediacatalog/internal/config"
	"github.com/dmitrijs2005/mediacatalog/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	buildinfo.PrintBuildData(os.Stderr)

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	a, err := app.NewApp(ctx, cfg, logger, os.Stderr)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer a.Close()

	report, err := a.RunBackfill(ctx)
	if err != nil {
		logger.Error(ctx, "backfill failed", "reason", err.Error())
		return 1
	}
	if report.Failed > 0 || report.Mismatched > 0 {
		return 2
	}
	return 0
}
