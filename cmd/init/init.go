package init

import (
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize disksift configuration files",
		Long: `Initialize disksift configuration files.

This command writes a commented config.yaml with the default settings of every
analyze option, ready to be edited.`,
	}

	cmd.AddCommand(NewConfigCmd())

	return cmd
}
