package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"jailprov/pkg/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if long {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), version.GetLongVersion())
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "jailprov %s\n", version.GetShortVersion())
			return nil
		},
	}

	cmd.Flags().BoolVar(&long, "long", false, "Show detailed build information")

	return cmd
}
