package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/mediacatalog/internal/flagx"
	"github.com/dmitrijs2005/mediacatalog/internal/timex"
)

// JsonStore is the JSON shape of a StoreConfig.
type JsonStore struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
}

// JsonConfig is the intermediate DTO used only for reading JSON
// configuration files. Durations accept "30s" or integer nanoseconds.
type JsonConfig struct {
	DatabaseDSN      string         `json:"database_dsn"`
	Source           JsonStore      `json:"source"`
	SourcePrefix     string         `json:"source_prefix"`
	Destination      JsonStore      `json:"destination"`
	PathStyle        bool           `json:"path_style"`
	MetadataCSV      string         `json:"metadata_csv"`
	Extensions       []string       `json:"extensions"`
	MatchThreshold   float64        `json:"match_threshold"`
	Workers          int            `json:"workers"`
	TestMode         bool           `json:"test_mode"`
	TestModeLimit    int            `json:"test_mode_limit"`
	CallTimeout      timex.Duration `json:"call_timeout"`
	WorkDir          string         `json:"work_dir"`
	BatchSize        int            `json:"batch_size"`
	BackfillInterval timex.Duration `json:"backfill_interval"`
	MetricsAddr      string         `json:"metrics_addr"`
	LogLevel         string         `json:"log_level"`
}

func toJsonStore(s StoreConfig) JsonStore {
	return JsonStore{Endpoint: s.Endpoint, Region: s.Region, AccessKey: s.AccessKey, SecretKey: s.SecretKey, Bucket: s.Bucket}
}

func (s JsonStore) store() StoreConfig {
	return StoreConfig{Endpoint: s.Endpoint, Region: s.Region, AccessKey: s.AccessKey, SecretKey: s.SecretKey, Bucket: s.Bucket}
}

// parseJson overlays the JSON file named by -c or -config onto config.
// Keys missing from the file keep their current values. Nothing happens
// when no file is given; an unreadable or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	// start from the current values so absent keys are left alone
	c := &JsonConfig{
		DatabaseDSN:      config.DatabaseDSN,
		Source:           toJsonStore(config.Source),
		SourcePrefix:     config.SourcePrefix,
		Destination:      toJsonStore(config.Destination),
		PathStyle:        config.PathStyle,
		MetadataCSV:      config.MetadataCSV,
		Extensions:       config.Extensions,
		MatchThreshold:   config.MatchThreshold,
		Workers:          config.Workers,
		TestMode:         config.TestMode,
		TestModeLimit:    config.TestModeLimit,
		CallTimeout:      timex.Duration{Duration: config.CallTimeout},
		WorkDir:          config.WorkDir,
		BatchSize:        config.BatchSize,
		BackfillInterval: timex.Duration{Duration: config.BackfillInterval},
		MetricsAddr:      config.MetricsAddr,
		LogLevel:         config.LogLevel,
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.DatabaseDSN = c.DatabaseDSN
	config.Source = c.Source.store()
	config.SourcePrefix = c.SourcePrefix
	config.Destination = c.Destination.store()
	config.PathStyle = c.PathStyle
	config.MetadataCSV = c.MetadataCSV
	config.Extensions = c.Extensions
	config.MatchThreshold = c.MatchThreshold
	config.Workers = c.Workers
	config.TestMode = c.TestMode
	config.TestModeLimit = c.TestModeLimit
	config.CallTimeout = c.CallTimeout.Duration
	config.WorkDir = c.WorkDir
	config.BatchSize = c.BatchSize
	config.BackfillInterval = c.BackfillInterval.Duration
	config.MetricsAddr = c.MetricsAddr
	config.LogLevel = c.LogLevel
}
