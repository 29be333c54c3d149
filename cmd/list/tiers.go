package list

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"disksift/internal/tiers"
)

// NewTiersCmd creates the tiers command
func NewTiersCmd() *cobra.Command {
	var catalogFile string

	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "List managed disk performance tiers",
		Long: `List every family and tier of the catalog with its rated size, IOPS and throughput.
The embedded catalog is used unless --catalog-file points to a YAML override.`,
		Example: `  # Show the embedded catalog
  disksift list tiers`,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := tiers.LoadFile(catalogFile)
			if err != nil {
				return err
			}
			data := pterm.TableData{{"Family", "Tier", "Size (GiB)", "IOPS", "MB/s", "Operations billed"}}
			for _, fam := range catalog.Families() {
				for _, t := range fam.Tiers {
					data = append(data, []string{
						string(fam.Name),
						t.Name,
						strconv.Itoa(t.SizeGiB),
						strconv.Itoa(t.IOPS),
						strconv.Itoa(t.ThroughputMBps),
						strconv.FormatBool(fam.TransactionBilled),
					})
				}
			}
			table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogFile, "catalog-file", "", "YAML tier catalog overriding the embedded one")

	return cmd
}
