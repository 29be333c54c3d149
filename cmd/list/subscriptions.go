package list

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"disksift/internal/azure"
)

// newSubscriptionLister is replaced in tests
var newSubscriptionLister = func() (azure.SubscriptionLister, error) {
	cred, err := azure.NewCredential()
	if err != nil {
		return nil, err
	}
	return azure.NewSubscriptionLister(cred)
}

// NewSubscriptionsCmd creates the subscriptions command
func NewSubscriptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subscriptions",
		Short: "List enabled Azure subscriptions",
		Long: `List the enabled subscriptions the default Azure credential can access.
These are the subscriptions analyze audits when none are selected.`,
		Example: `  # List every enabled subscription
  disksift list subscriptions`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lister, err := newSubscriptionLister()
			if err != nil {
				return fmt.Errorf("failed to create subscription lister: %w", err)
			}
			subs, err := lister.ListSubscriptions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list subscriptions: %w", err)
			}
			return printSubscriptions(cmd.OutOrStdout(), subs)
		},
	}
}

func printSubscriptions(w io.Writer, subs []azure.Subscription) error {
	if len(subs) == 0 {
		fmt.Fprintln(w, "No enabled subscriptions found.")
		return nil
	}
	data := pterm.TableData{{"Subscription ID", "Name", "State"}}
	for _, s := range subs {
		data = append(data, []string{s.ID, s.Name, s.State})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)
	return nil
}
