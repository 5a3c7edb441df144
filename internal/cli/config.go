package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/chaincore/internal/config"
)

// ConfigInitOptions holds flags for the config init command.
type ConfigInitOptions struct {
	*RootOptions
	Force bool
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfigInitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a configuration file with default values",
		Long: `Write a TOML configuration file holding every setting at its default.

Example:
  chaincore config init ./chaincore.toml
  chaincore config init ./chaincore.toml --force`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !opts.Force {
				return NewExitError(ExitCommandError, fmt.Sprintf("config file already exists: %s (use --force to overwrite)", path))
			}
			if err := config.WriteConfigFile(path, config.DefaultConfig()); err != nil {
				return WrapExitError(ExitCommandError, "failed to write config", err)
			}
			return newFormatter(opts.RootOptions, cmd).Success(map[string]string{"path": path})
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing file")
	return cmd
}
