package config

import (
	"runtime"
	"time"
)

// GlobalConfig holds the global configuration for the application
type GlobalConfig struct {
	// MaxWorkers defines the maximum number of concurrent workers
	MaxWorkers int

	// LogFormat is the format for logging
	LogFormat string

	// LogLevel is the minimum level that is logged
	LogLevel string
}

// Config is the global configuration instance
var Config = &GlobalConfig{
	MaxWorkers: runtime.NumCPU() * 4, // API bound, not CPU bound
	LogFormat:  "text",
	LogLevel:   "INFO",
}

// AnalyzeConfig holds the resolved settings of an analyze run
type AnalyzeConfig struct {
	Subscriptions   []string
	CLISubscription bool
	UseCache        bool
	DataDir         string
	OutputDir       string
	OutputFormat    string
	PAYGDiscount    float64
	TimerangeDays   int
	Interval        string
	MinimalTier     string
	CatalogFile     string
	PriceCacheFile  string
	PriceCacheTTL   time.Duration
	RefreshPrices   bool
	Force           bool
}
