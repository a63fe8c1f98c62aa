package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/prefs"
)

// LangResult is the JSON shape of the lang command.
type LangResult struct {
	Language string `json:"language"`
	RTL      bool   `json:"rtl"`
}

// NewLangCommand reads or stores the display language preference.
func NewLangCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lang [tag]",
		Short: "Show or set the display language",
		Long: `Without an argument, print the stored display language. With a BCP 47
tag, store it. Only English and Arabic are supported.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := OpenPrefs(cmd.Context(), rootOpts.Settings)
			if err != nil {
				return WrapExitError(ExitCommandError, "open preferences", err)
			}
			defer store.Close()

			var tag language.Tag
			if len(args) == 1 {
				tag, err = store.SetLanguage(cmd.Context(), args[0])
				if errors.Is(err, authflow.ErrUnsupportedLanguage) {
					return WrapExitError(ExitFailure, "set language", err)
				}
			} else {
				tag, err = store.Language(cmd.Context())
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "language preference", err)
			}

			res := LangResult{Language: tag.String(), RTL: prefs.IsRTL(tag)}
			text := res.Language
			if res.RTL {
				text += " (rtl)"
			}
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Success(res, text)
		},
	}
	return cmd
}

// printLanguage announces the stored language before an interactive run.
func printLanguage(cmd *cobra.Command, s Settings) error {
	store, err := OpenPrefs(cmd.Context(), s)
	if err != nil {
		return err
	}
	defer store.Close()
	tag, err := store.Language(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Language: %s\n", tag)
	return nil
}
