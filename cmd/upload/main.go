// Command upload stores a local audio file as a user upload.
//
//	upload -user 42 -file take.wav [-title "Demo Take"] [-c config.json]
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/dmitrijs2005/mediacatalog/internal/app"
	"github.com/dmitrijs2005/mediacatalog/internal/config"
	"github.com/dmitrijs2005/mediacatalog/internal/flagx"
	"github.com/dmitrijs2005/mediacatalog/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	var userID, title, path string

	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.StringVar(&userID, "user", "", "owner user id")
	fs.StringVar(&title, "title", "", "title used in the key (default: file name)")
	fs.StringVar(&path, "file", "", "local file to upload")
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-user", "-title", "-file"})); err != nil {
		return 1
	}
	if userID == "" || path == "" {
		fs.Usage()
		return 1
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	a, err := app.NewApp(ctx, cfg, logger, os.Stdout)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer a.Close()

	if _, err := a.RunUpload(ctx, userID, title, path); err != nil {
		logger.Error(ctx, "upload failed", "reason", err.Error())
		return 1
	}
	return 0
}
