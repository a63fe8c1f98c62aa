package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the settings resolved from them.
type RootOptions struct {
	ConfigPath string
	EnvFile    string
	Backend    string
	Verbose    bool
	Format     string // "json" | "text"

	Settings Settings
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the authflow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Settings: DefaultSettings()}

	cmd := &cobra.Command{
		Use:   "authflow",
		Short: "authflow - headless sign-in flow",
		Long: `Drive the email and phone sign-in flow from a terminal.

Settings come from defaults, --config (YAML), --env-file, AUTHFLOW_*
environment variables and finally command-line flags.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			s, err := LoadSettings(opts.ConfigPath, opts.EnvFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "load settings", err)
			}
			flags := cmd.Flags()
			if flags.Changed("backend") {
				s.Backend = opts.Backend
			}
			if flags.Changed("verbose") {
				s.Verbose = opts.Verbose
			}
			opts.Settings = s
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML settings file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the environment")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", BackendMock, "backend (mock|live)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewLangCommand(opts))

	return cmd
}

// wire builds the app for a subcommand. Issued codes go to stdout and
// audit lines to stderr.
func (o *RootOptions) wire(cmd *cobra.Command) (*App, error) {
	logger, err := NewLogger(o.Settings)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "logger setup failed", err)
	}
	return Wire(cmd.Context(), o.Settings, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}
