package cache

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	pricecache "disksift/internal/azure/pricing/cache"
	"disksift/internal/logging"
	"disksift/internal/store"
)

// NewCacheCmd creates the cache command
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage locally cached prices and snapshots",
	}

	cmd.AddCommand(newClearCmd())

	return cmd
}

func newClearCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the price cache",
		Long: `Remove the retail price cache so the next analyze run fetches fresh prices.
With --all the disk inventory and usage snapshots under the data directory are removed too.`,
		Example: `  # Drop cached prices
  disksift cache clear

  # Drop cached prices, inventory and usage
  disksift cache clear --all --data-dir data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			priceFile := viper.GetString("pricing.cache_file")
			if err := pricecache.ClearFile(priceFile); err != nil {
				return err
			}
			logging.Info("Cleared price cache", map[string]interface{}{"path": priceFile})
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", priceFile)

			if !all {
				return nil
			}
			snapshots := store.New(viper.GetString("analyze.data_dir"))
			if err := snapshots.Clear(); err != nil {
				return err
			}
			logging.Info("Cleared snapshots", map[string]interface{}{
				"disks": snapshots.DisksPath(),
				"usage": snapshots.UsagePath(),
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s and %s\n", snapshots.DisksPath(), snapshots.UsagePath())
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Also remove inventory and usage snapshots")
	cmd.Flags().String("price-cache-file", "cache/prices.json", "Price cache file")
	cmd.Flags().String("data-dir", "data", "Directory holding inventory and usage snapshots")

	return cmd
}
