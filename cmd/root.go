package cmd

import (
	"disksift/cmd/analyze"
	cacheCmd "disksift/cmd/cache"
	initCmd "disksift/cmd/init"
	"disksift/cmd/list"
	"disksift/cmd/tier"
	"disksift/cmd/version"
	"disksift/internal/config"
	"disksift/internal/logging"

	"github.com/spf13/cobra"
)

// skipsConfig reports whether a command runs without loading configuration
func skipsConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return true
	}
	return false
}

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "disksift",
		Short: "disksift - Azure managed disk right-sizing tool",
		Long: `disksift audits Azure managed disks, compares their observed load with the
limits of their performance tier and recommends cheaper tiers that still fit.
It prints the estimated monthly cost delta and writes a per-disk report.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsConfig(cmd) {
				return nil
			}

			if err := config.InitConfig(); err != nil {
				return err
			}
			if configFile != "" {
				if err := config.SetConfigFile(configFile); err != nil {
					return err
				}
			} else if err := config.CreateDefaultConfig(); err != nil {
				logging.Debug("Could not create default config", map[string]interface{}{"error": err.Error()})
			}

			if err := config.BindFlags(cmd); err != nil {
				return err
			}
			config.ApplyGlobal()

			logging.Configure(logging.LogConfig{
				Level:  logging.ParseLevel(config.Config.LogLevel),
				Format: logging.ParseFormat(config.Config.LogFormat),
			})
			config.LogConfigurationSources(cmd)
			return nil
		},
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().Int("max-workers", 8, "Maximum number of concurrent API calls")
	rootCmd.PersistentFlags().String("log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "Set logging level (DEBUG, INFO, WARN, ERROR)")

	// Add commands
	rootCmd.AddCommand(analyze.NewAnalyzeCmd())
	rootCmd.AddCommand(tier.NewTierCmd())
	rootCmd.AddCommand(list.NewListCmd())
	rootCmd.AddCommand(cacheCmd.NewCacheCmd())
	rootCmd.AddCommand(initCmd.NewInitCmd())
	rootCmd.AddCommand(version.NewVersionCmd())

	return rootCmd
}

// Execute adds all child commands to the root command and runs it
func Execute() error {
	return NewRootCmd().Execute()
}
