package list

import (
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List Azure subscriptions, disk tiers and CLI profiles",
		Long: `List Azure resources and local configuration.
Currently supports listing:
  - Azure subscriptions visible to the current credential
  - Managed disk performance tiers of the catalog
  - Azure CLI cloud profiles and their selected subscription`,
	}

	cmd.AddCommand(NewSubscriptionsCmd())
	cmd.AddCommand(NewTiersCmd())
	cmd.AddCommand(NewProfilesCmd())

	return cmd
}
