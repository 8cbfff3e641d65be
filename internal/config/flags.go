package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/mediacatalog/internal/flagx"
)

var (
	valueFlags = []string{
		"-d", "-dsn",
		"-src-endpoint", "-src-region", "-src-access-key", "-src-secret-key", "-src-bucket", "-src-prefix",
		"-dst-endpoint", "-dst-region", "-dst-access-key", "-dst-secret-key", "-dst-bucket",
		"-metadata", "-extensions", "-threshold",
		"-workers", "-test-limit", "-call-timeout", "-work-dir",
		"-batch-size", "-backfill-interval",
		"-metrics-addr", "-log-level",
	}
	boolFlags = []string{"-path-style", "-test-mode"}
)

// parseFlags overlays command-line flags onto config.
//
// os.Args is first filtered with flagx.FilterArgs, so flags owned by other
// layers (-c/-config) do not trip the parser. Durations use Go syntax
// ("30s"); -extensions is a comma-separated list.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], append(append([]string{}, valueFlags...), boolFlags...), boolFlags...)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DatabaseDSN, "dsn", config.DatabaseDSN, "database DSN")

	fs.StringVar(&config.Source.Endpoint, "src-endpoint", config.Source.Endpoint, "source S3 endpoint")
	fs.StringVar(&config.Source.Region, "src-region", config.Source.Region, "source S3 region")
	fs.StringVar(&config.Source.AccessKey, "src-access-key", config.Source.AccessKey, "source S3 access key")
	fs.StringVar(&config.Source.SecretKey, "src-secret-key", config.Source.SecretKey, "source S3 secret key")
	fs.StringVar(&config.Source.Bucket, "src-bucket", config.Source.Bucket, "source S3 bucket")
	fs.StringVar(&config.SourcePrefix, "src-prefix", config.SourcePrefix, "source key prefix to scan")

	fs.StringVar(&config.Destination.Endpoint, "dst-endpoint", config.Destination.Endpoint, "destination S3 endpoint")
	fs.StringVar(&config.Destination.Region, "dst-region", config.Destination.Region, "destination S3 region")
	fs.StringVar(&config.Destination.AccessKey, "dst-access-key", config.Destination.AccessKey, "destination S3 access key")
	fs.StringVar(&config.Destination.SecretKey, "dst-secret-key", config.Destination.SecretKey, "destination S3 secret key")
	fs.StringVar(&config.Destination.Bucket, "dst-bucket", config.Destination.Bucket, "destination S3 bucket")
	fs.BoolVar(&config.PathStyle, "path-style", config.PathStyle, "use path-style S3 addressing")

	fs.StringVar(&config.MetadataCSV, "metadata", config.MetadataCSV, "metadata spreadsheet (CSV)")
	extensions := fs.String("extensions", strings.Join(config.Extensions, ","), "comma-separated extension allow-list")
	fs.Float64Var(&config.MatchThreshold, "threshold", config.MatchThreshold, "minimum similarity for a metadata match")

	fs.IntVar(&config.Workers, "workers", config.Workers, "objects processed in parallel")
	fs.BoolVar(&config.TestMode, "test-mode", config.TestMode, "process only the first few objects")
	fs.IntVar(&config.TestModeLimit, "test-limit", config.TestModeLimit, "objects processed in test mode")
	fs.DurationVar(&config.CallTimeout, "call-timeout", config.CallTimeout, "timeout of a single store or database call")
	fs.StringVar(&config.WorkDir, "work-dir", config.WorkDir, "directory for temporary files (default: system temp)")

	fs.IntVar(&config.BatchSize, "batch-size", config.BatchSize, "catalog rows per transaction")
	fs.DurationVar(&config.BackfillInterval, "backfill-interval", config.BackfillInterval, "minimum spacing between backfilled rows")

	fs.StringVar(&config.MetricsAddr, "metrics-addr", config.MetricsAddr, "address of the /metrics listener (empty: disabled)")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.Extensions = splitExtensions(*extensions)
}

func splitExtensions(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(part)), ".")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
