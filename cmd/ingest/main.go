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

	summary, err := a.RunIngest(ctx)
	if err != nil {
		logger.Error(ctx, "ingest failed", "reason", err.Error())
		return 1
	}
	if summary.Failed > 0 {
		return 2
	}
	return 0
}
