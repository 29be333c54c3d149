package analyze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"disksift/internal/analysis"
	"disksift/internal/azure"
	"disksift/internal/azure/pricing"
	"disksift/internal/azure/pricing/cache"
	"disksift/internal/config"
	"disksift/internal/logging"
	"disksift/internal/output"
	"disksift/internal/store"
	"disksift/internal/tiers"
)

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Recommend cheaper tiers for Azure managed disks",
		Long: `Analyze Azure managed disks for potential cost savings.

For every disk the command derives the billed tier from its size and SKU, reads the
peak throughput and IOPS of the last days from Azure Monitor and looks for the cheapest
lower family (standard SSD, then standard HDD) whose rated limits still cover those peaks.
Prices come from the public Azure retail prices API.

Examples:
  # Analyze every subscription the current credential can read
  disksift analyze

  # Reuse the inventory and metrics of the previous run and apply a 15% discount
  disksift analyze --use-cache --payg-discount 0.15

  # Only the Azure CLI's active subscription, never recommend HDD
  disksift analyze --cli-subscription --minimal-tier standard_ssd

  # Two named subscriptions, a week of metrics, gzip JSON report
  disksift analyze --subscriptions prod,staging --timerange-days 7 --output-format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAnalyzeConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runAnalyze(ctx, cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().Bool("use-cache", false, "Reuse inventory and usage snapshots from --data-dir when present")
	cmd.Flags().Float64("payg-discount", 0, "Enterprise discount on pay-as-you-go prices, between 0 and 1")
	cmd.Flags().Int("timerange-days", 3, "Days of metrics to analyze")
	cmd.Flags().String("interval", "PT1M", "Metric granularity as an ISO-8601 duration")
	cmd.Flags().String("minimal-tier", "standard_hdd", "Cheapest family to recommend (standard_hdd, standard_ssd)")
	cmd.Flags().StringSlice("subscriptions", nil, "Comma-separated subscription ids or names to analyze (default: all)")
	cmd.Flags().Bool("cli-subscription", false, "Only analyze the Azure CLI's active subscription")
	cmd.Flags().StringP("output-format", "o", "csv", "Report format (csv, json)")
	cmd.Flags().String("output-dir", "output", "Directory receiving the report")
	cmd.Flags().String("data-dir", "data", "Directory holding inventory and usage snapshots")
	cmd.Flags().Bool("refresh-prices", false, "Ignore cached prices and fetch them again")
	cmd.Flags().Bool("force", false, "Overwrite today's report if it exists")
	cmd.Flags().String("catalog-file", "", "YAML tier catalog overriding the embedded one")
	cmd.Flags().String("price-cache-file", "cache/prices.json", "Price cache file")
	cmd.Flags().Duration("price-cache-ttl", cache.DefaultTTL, "How long cached prices stay valid")

	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, cfg config.AnalyzeConfig) error {
	floor, err := tiers.ParseFamily(cfg.MinimalTier)
	if err != nil {
		return err
	}
	catalog, err := tiers.LoadFile(cfg.CatalogFile)
	if err != nil {
		return err
	}

	subscriptions := cfg.Subscriptions
	if cfg.CLISubscription {
		id, err := azure.ActiveCLISubscription(azure.CLIConfigDir())
		if err != nil {
			return fmt.Errorf("failed to read Azure CLI subscription: %w", err)
		}
		logging.Info("Using Azure CLI subscription", map[string]interface{}{"subscription_id": id})
		subscriptions = []string{id}
	}

	cred, err := azure.NewCredential()
	if err != nil {
		return err
	}
	subLister, err := azure.NewSubscriptionLister(cred)
	if err != nil {
		return err
	}

	priceCache, err := cache.NewPriceCache(cfg.PriceCacheFile, cfg.PriceCacheTTL)
	if err != nil {
		return err
	}

	src := analysis.Sources{
		Subscriptions: subLister,
		Disks:         azure.NewDiskLister(cred),
		Metrics: azure.NewMetricsClient(cred, azure.MetricsOptions{
			TimerangeDays: cfg.TimerangeDays,
			Interval:      cfg.Interval,
		}),
		Prices:    pricing.NewEstimator(pricing.NewRetailClient("", nil), priceCache, cfg.RefreshPrices),
		Snapshots: store.New(cfg.DataDir),
	}
	opts := analysis.Options{
		Subscriptions: subscriptions,
		UseCache:      cfg.UseCache,
		Floor:         floor,
		PAYGDiscount:  cfg.PAYGDiscount,
		MaxWorkers:    config.Config.MaxWorkers,
		Progress:      output.Trackers(logging.ParseFormat(config.Config.LogFormat) == logging.JSON),
	}

	result, err := analysis.Run(ctx, catalog, src, opts)
	if err != nil {
		return err
	}

	return report(out, cfg, result)
}

// report writes the report file and prints the console summary
func report(out io.Writer, cfg config.AnalyzeConfig, result *analysis.Result) error {
	writer := output.NewWriter(output.Config{
		OutputDir: cfg.OutputDir,
		Format:    output.Format(cfg.OutputFormat),
		Force:     cfg.Force,
	})
	path, err := writer.Write(result)
	switch {
	case errors.Is(err, output.ErrReportExists):
		logging.Warn("Report not written", map[string]interface{}{"path": path, "reason": err.Error()})
	case err != nil:
		return err
	default:
		logging.Info("Saved recommendation report", map[string]interface{}{
			"path":   path,
			"run_id": result.RunID,
		})
	}

	output.PrintSummary(out, result.Summary)

	table, err := output.ChangesTable(result.Rows)
	if err != nil {
		return fmt.Errorf("failed to render recommendations: %w", err)
	}
	if table != "" {
		fmt.Fprintln(out, table)
	} else {
		fmt.Fprintln(out, "No cheaper tier fits the observed load of any disk.")
	}
	return nil
}
