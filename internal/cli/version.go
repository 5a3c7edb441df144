package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/chaincore/internal/ir"
)

// VersionInfo is the payload of the version command.
type VersionInfo struct {
	Runtime string `json:"runtime"`
	Content string `json:"content"`
}

func (v VersionInfo) String() string {
	return "chaincore " + v.Runtime + " (content v" + v.Content + ")"
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newFormatter(rootOpts, cmd).Success(VersionInfo{
				Runtime: ir.RuntimeVersion,
				Content: ir.ContentVersion,
			})
		},
	}
}
