package tier

import (
	"fmt"

	"github.com/spf13/cobra"

	"disksift/internal/tiers"
)

type tierOptions struct {
	size           int
	sku            string
	peakIOPS       float64
	peakThroughput float64
	minimalTier    string
	catalogFile    string
}

// NewTierCmd creates the offline tier command
func NewTierCmd() *cobra.Command {
	opts := &tierOptions{}

	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Classify a disk and recommend a tier without calling Azure",
		Long: `Classify a disk size and SKU into its billed tier and recommend the cheapest
lower-family tier that still covers the given peaks. No Azure API is called.`,
		Example: `  # Which tier does a 200 GiB premium disk bill as, and where could it go?
  disksift tier --size 200 --sku Premium_LRS --peak-iops 350 --peak-throughput 40

  # Same, but never recommend standard HDD
  disksift tier --size 200 --sku Premium_LRS --peak-iops 350 --minimal-tier standard_ssd`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTier(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.size, "size", 0, "Disk size in GiB")
	cmd.Flags().StringVar(&opts.sku, "sku", "Premium_LRS", "Disk SKU (Standard_LRS, StandardSSD_LRS, StandardSSD_ZRS, Premium_LRS, Premium_ZRS)")
	cmd.Flags().Float64Var(&opts.peakIOPS, "peak-iops", 0, "Observed peak IOPS")
	cmd.Flags().Float64Var(&opts.peakThroughput, "peak-throughput", 0, "Observed peak throughput in MB/s")
	cmd.Flags().StringVar(&opts.minimalTier, "minimal-tier", "standard_hdd", "Cheapest family to recommend (standard_hdd, standard_ssd)")
	cmd.Flags().StringVar(&opts.catalogFile, "catalog-file", "", "YAML tier catalog overriding the embedded one")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}

func runTier(cmd *cobra.Command, opts *tierOptions) error {
	if opts.peakIOPS < 0 || opts.peakThroughput < 0 {
		return fmt.Errorf("peaks must not be negative")
	}
	floor, err := tiers.ParseFamily(opts.minimalTier)
	if err != nil {
		return err
	}
	catalog, err := tiers.LoadFile(opts.catalogFile)
	if err != nil {
		return err
	}

	sku, err := tiers.ParseSKU(opts.sku)
	if err != nil {
		return err
	}
	current, err := catalog.Classify(opts.size, opts.sku)
	if err != nil {
		return err
	}
	recommended := catalog.RecommendLower(current, opts.peakThroughput, opts.peakIOPS, tiers.Floor(sku, floor))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Current:     %-4s %-16s %6d GiB %6d IOPS %5d MB/s\n",
		current.Name, sku.Name, current.SizeGiB, current.IOPS, current.ThroughputMBps)
	fmt.Fprintf(out, "Recommended: %-4s %-16s %6d GiB %6d IOPS %5d MB/s\n",
		recommended.Name, tiers.SKUName(recommended.Family, sku.Redundancy),
		recommended.SizeGiB, recommended.IOPS, recommended.ThroughputMBps)
	if recommended.Name == current.Name {
		fmt.Fprintln(out, "No cheaper tier covers the given peaks.")
	}
	return nil
}
