package list

import (
	"fmt"

	"github.com/spf13/cobra"

	"disksift/internal/azure"
)

// NewProfilesCmd creates and returns the profiles command
func NewProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List Azure CLI cloud profiles",
		Long: `List the clouds configured in the Azure CLI and the subscription selected for each.
These are read from clouds.config in the Azure CLI configuration directory
(AZURE_CONFIG_DIR or ~/.azure). The active cloud is marked with *.`,
		Example: `  # List all Azure CLI profiles
  disksift list profiles`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfiles(cmd, azure.CLIConfigDir())
		},
	}

	return cmd
}

func runProfiles(cmd *cobra.Command, dir string) error {
	profiles, err := azure.ListCLIProfiles(dir)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(profiles) == 0 {
		fmt.Fprintf(out, "No Azure CLI profiles found in %s\n", dir)
		return nil
	}
	for _, p := range profiles {
		marker := " "
		if p.Active {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\t%s\n", marker, p.Cloud, p.SubscriptionID)
	}

	return nil
}
