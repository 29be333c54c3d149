package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"disksift/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ErrInvalidSetting is returned when a configuration value is out of range
var ErrInvalidSetting = errors.New("invalid setting")

// flagNames maps config keys to the flag names that override them
var flagNames = map[string]string{
	"azure.subscriptions":    "subscriptions",
	"azure.cli_subscription": "cli-subscription",
	"app.max_workers":        "max-workers",
	"app.log_format":         "log-format",
	"app.log_level":          "log-level",
	"analyze.use_cache":      "use-cache",
	"analyze.data_dir":       "data-dir",
	"analyze.output_dir":     "output-dir",
	"analyze.output_format":  "output-format",
	"analyze.payg_discount":  "payg-discount",
	"analyze.timerange_days": "timerange-days",
	"analyze.interval":       "interval",
	"analyze.minimal_tier":   "minimal-tier",
	"analyze.refresh_prices": "refresh-prices",
	"analyze.force":          "force",
	"tiers.catalog_file":     "catalog-file",
	"pricing.cache_file":     "price-cache-file",
	"pricing.cache_ttl":      "price-cache-ttl",
}

// parameterSource tracks where each parameter value came from
type parameterSource struct {
	Key    string
	Value  interface{}
	Source string
}

// getParameterSource determines where a parameter value came from (config file, env var, flag, or default)
func getParameterSource(key string, cmd *cobra.Command) parameterSource {
	value := viper.Get(key)
	envKey := "DISKSIFT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))

	flagName := flagNames[key]
	if flagName == "" {
		flagName = strings.ReplaceAll(key, ".", "-")
	}

	if cmd != nil {
		if f := cmd.Flags().Lookup(flagName); f != nil && f.Changed {
			return parameterSource{key, value, "command line flag"}
		}
		for current := cmd; current != nil; current = current.Parent() {
			if f := current.PersistentFlags().Lookup(flagName); f != nil && f.Changed {
				return parameterSource{key, value, "command line flag"}
			}
		}
	}

	if _, exists := os.LookupEnv(envKey); exists {
		return parameterSource{key, value, "environment variable"}
	}

	if viper.GetViper().InConfig(key) {
		return parameterSource{key, value, "config file"}
	}

	return parameterSource{key, value, "default value"}
}

// LogConfigurationSources logs the source of each configuration parameter
func LogConfigurationSources(cmd *cobra.Command) {
	if !logging.Enabled(logging.DEBUG) {
		return
	}

	logging.Debug("Configuration parameter sources:", nil)
	for _, key := range configKeys() {
		source := getParameterSource(key, cmd)
		logging.Debug(fmt.Sprintf("  %s = %v (from %s)", source.Key, source.Value, source.Source), nil)
	}
}

func configKeys() []string {
	return []string{
		"azure.subscriptions",
		"azure.cli_subscription",
		"app.max_workers",
		"app.log_format",
		"app.log_level",
		"analyze.use_cache",
		"analyze.data_dir",
		"analyze.output_dir",
		"analyze.output_format",
		"analyze.payg_discount",
		"analyze.timerange_days",
		"analyze.interval",
		"analyze.minimal_tier",
		"analyze.refresh_prices",
		"analyze.force",
		"tiers.catalog_file",
		"pricing.cache_file",
		"pricing.cache_ttl",
	}
}

// SetDefaults registers the default value of every configuration key
func SetDefaults() {
	viper.SetDefault("azure.subscriptions", []string{})
	viper.SetDefault("azure.cli_subscription", false)
	viper.SetDefault("app.max_workers", 8)
	viper.SetDefault("app.log_format", "text")
	viper.SetDefault("app.log_level", "INFO")
	viper.SetDefault("analyze.use_cache", false)
	viper.SetDefault("analyze.data_dir", "data")
	viper.SetDefault("analyze.output_dir", "output")
	viper.SetDefault("analyze.output_format", "csv")
	viper.SetDefault("analyze.payg_discount", 0.0)
	viper.SetDefault("analyze.timerange_days", 3)
	viper.SetDefault("analyze.interval", "PT1M")
	viper.SetDefault("analyze.minimal_tier", "STANDARD_HDD")
	viper.SetDefault("analyze.refresh_prices", false)
	viper.SetDefault("analyze.force", false)
	viper.SetDefault("tiers.catalog_file", "")
	viper.SetDefault("pricing.cache_file", "cache/prices.json")
	viper.SetDefault("pricing.cache_ttl", "168h")
}

// InitConfig initializes the Viper configuration
func InitConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".disksift"))
	}

	viper.SetEnvPrefix("DISKSIFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		logging.Debug("No config file found, using defaults and environment variables", nil)
	} else {
		logging.Debug("Loaded config file", map[string]interface{}{
			"path": viper.ConfigFileUsed(),
		})
	}

	return nil
}

// SetConfigFile sets a custom config file path and reloads the configuration
func SetConfigFile(configFile string) error {
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// BindFlags binds every flag of cmd that has a config key to that key
func BindFlags(cmd *cobra.Command) error {
	for key, flagName := range flagNames {
		f := cmd.Flags().Lookup(flagName)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flagName, err)
		}
	}
	return nil
}

// ApplyGlobal copies app.* settings into the global Config
func ApplyGlobal() {
	if workers := viper.GetInt("app.max_workers"); workers > 0 {
		Config.MaxWorkers = workers
	}
	Config.LogFormat = viper.GetString("app.log_format")
	Config.LogLevel = viper.GetString("app.log_level")
}

// splitList flattens comma separated entries of a string slice
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// LoadAnalyzeConfig resolves and validates the analyze settings from viper
func LoadAnalyzeConfig() (AnalyzeConfig, error) {
	cfg := AnalyzeConfig{
		Subscriptions:   splitList(viper.GetStringSlice("azure.subscriptions")),
		CLISubscription: viper.GetBool("azure.cli_subscription"),
		UseCache:        viper.GetBool("analyze.use_cache"),
		DataDir:         viper.GetString("analyze.data_dir"),
		OutputDir:       viper.GetString("analyze.output_dir"),
		OutputFormat:    strings.ToLower(viper.GetString("analyze.output_format")),
		PAYGDiscount:    viper.GetFloat64("analyze.payg_discount"),
		TimerangeDays:   viper.GetInt("analyze.timerange_days"),
		Interval:        viper.GetString("analyze.interval"),
		MinimalTier:     viper.GetString("analyze.minimal_tier"),
		CatalogFile:     viper.GetString("tiers.catalog_file"),
		PriceCacheFile:  viper.GetString("pricing.cache_file"),
		PriceCacheTTL:   viper.GetDuration("pricing.cache_ttl"),
		RefreshPrices:   viper.GetBool("analyze.refresh_prices"),
		Force:           viper.GetBool("analyze.force"),
	}

	if cfg.PAYGDiscount < 0 || cfg.PAYGDiscount > 1 {
		return cfg, fmt.Errorf("%w: payg_discount must be between 0 and 1, got %v", ErrInvalidSetting, cfg.PAYGDiscount)
	}
	if cfg.TimerangeDays <= 0 {
		return cfg, fmt.Errorf("%w: timerange_days must be positive, got %d", ErrInvalidSetting, cfg.TimerangeDays)
	}
	switch cfg.OutputFormat {
	case "csv", "json":
	default:
		return cfg, fmt.Errorf("%w: output format %q (allowed: csv, json)", ErrInvalidSetting, cfg.OutputFormat)
	}
	if !strings.HasPrefix(strings.ToUpper(cfg.Interval), "PT") {
		return cfg, fmt.Errorf("%w: interval %q is not an ISO-8601 duration such as PT1M", ErrInvalidSetting, cfg.Interval)
	}

	return cfg, nil
}

// DefaultConfigContent is the commented config written by CreateDefaultConfig and `init config`
const DefaultConfigContent = `# disksift configuration file

# Azure configuration
azure:
  # Subscriptions to audit (default: every subscription the credential can list)
  subscriptions:
   # - 00000000-0000-0000-0000-000000000000
  cli_subscription: false  # Only audit the Azure CLI's active subscription

# Application configuration
app:
  max_workers: 8  # Maximum number of concurrent API calls
  log_format: text  # Log output format (text or json)
  log_level: INFO  # Logging level (DEBUG, INFO, WARN, ERROR)

# Analyze command configuration
analyze:
  use_cache: false  # Reuse data/disks.json and data/usage.json when present
  data_dir: data  # Directory holding inventory and usage snapshots
  output_dir: output  # Directory receiving the recommendation report
  output_format: csv  # Report format (csv or json)
  payg_discount: 0  # Enterprise discount on pay-as-you-go prices, between 0 and 1
  timerange_days: 3  # Days of metrics to analyze
  interval: PT1M  # Metric granularity (ISO-8601)
  minimal_tier: STANDARD_HDD  # Cheapest family to recommend (STANDARD_HDD or STANDARD_SSD)

# Tier catalog override (default: embedded catalog)
tiers:
  catalog_file: ""

# Price cache
pricing:
  cache_file: cache/prices.json
  cache_ttl: 168h  # Prices older than this are fetched again
`

// CreateDefaultConfig creates ~/.disksift/config.yaml if it doesn't exist
func CreateDefaultConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("error getting home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".disksift")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(DefaultConfigContent), 0644); err != nil {
			return fmt.Errorf("error writing default config file: %w", err)
		}
	}

	return nil
}
