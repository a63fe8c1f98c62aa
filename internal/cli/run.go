package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rentoapp/authflow"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	SignOut bool
}

// NewRunCommand creates the interactive walkthrough.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Walk through the auth flow interactively",
		Long: `Walk through splash, entry, password or OTP, registration and password
reset against the configured backend.

At the password prompt type "forgot" to start a password reset. At the
code prompt type "resend" for a new code.

Exit codes:
  0 - Reached the authenticated state
  1 - Input ended before authentication
  2 - Configuration or backend setup error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.wire(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if err := printLanguage(cmd, opts.Settings); err != nil {
				app.Logger.Debug("language preference unavailable", zap.Error(err))
			}

			final, err := walk(cmd.Context(), app.Flow, p, cmd.OutOrStdout())
			if err != nil {
				if errors.Is(err, io.EOF) {
					return NewExitError(ExitFailure, "input ended before sign-in")
				}
				return WrapExitError(ExitFailure, "walkthrough aborted", err)
			}
			if opts.SignOut {
				render(cmd.OutOrStdout(), app.Flow.SignOut(cmd.Context(), final.To))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.SignOut, "sign-out", false, "sign out after reaching the authenticated state")
	return cmd
}

// walk drives flow from Start to Complete with answers from p.
func walk(ctx context.Context, flow *authflow.Flow, p *prompter, out io.Writer) (authflow.Transition, error) {
	t := flow.Start(ctx)
	render(out, t)

	step, fc := t.To, t.Flow
	for step != authflow.StepComplete {
		var err error
		switch step {
		case authflow.StepEntry:
			t, err = entry(ctx, flow, p)
		case authflow.StepPassword:
			var pw string
			if pw, err = p.secret("Password (or \"forgot\")"); err == nil {
				if strings.EqualFold(strings.TrimSpace(pw), "forgot") {
					step = authflow.StepForgotPassword
					continue
				}
				t = flow.SubmitPassword(ctx, fc, pw)
			}
		case authflow.StepOTPVerify:
			var code string
			if code, err = p.line("Code (or \"resend\")"); err == nil {
				if strings.EqualFold(strings.TrimSpace(code), "resend") {
					t = flow.ResendOTP(ctx, fc)
				} else {
					t = flow.SubmitOTP(ctx, fc, strings.TrimSpace(code))
				}
			}
		case authflow.StepRegister:
			t, err = register(ctx, flow, fc, p)
		case authflow.StepForgotPassword:
			var value string
			if value, err = p.line(fmt.Sprintf("Email or phone [%s]", fc.Identifier.Value)); err == nil {
				if strings.TrimSpace(value) == "" {
					value = fc.Identifier.Value
				}
				t = flow.ForgotPassword(ctx, value)
			}
		case authflow.StepResetPassword:
			var pw, confirm string
			if pw, err = p.secret("New password"); err == nil {
				if confirm, err = p.secret("Confirm password"); err == nil {
					t = flow.SubmitNewPassword(ctx, fc, pw, confirm)
				}
			}
		default:
			return t, fmt.Errorf("unexpected step %s", step)
		}
		if err != nil {
			return t, err
		}
		render(out, t)
		step, fc = t.To, t.Flow
	}

	if u := t.Result.User; u != nil && u.ID != "" {
		fmt.Fprintf(out, "Signed in as %s\n", u.ID)
	} else {
		fmt.Fprintln(out, "Signed in")
	}
	return t, nil
}

func entry(ctx context.Context, flow *authflow.Flow, p *prompter) (authflow.Transition, error) {
	method, err := p.line("Sign in with [email/phone]")
	if err != nil {
		return authflow.Transition{}, err
	}
	kind, err := authflow.ParseIdentifierKind(strings.ToLower(strings.TrimSpace(method)))
	if err != nil {
		kind = authflow.KindUnknown
	}
	label := "Email"
	if kind == authflow.KindPhone {
		label = "Phone"
	}
	value, err := p.line(label)
	if err != nil {
		return authflow.Transition{}, err
	}
	return flow.SubmitIdentifier(ctx, value, kind), nil
}

func register(ctx context.Context, flow *authflow.Flow, fc authflow.FlowContext, p *prompter) (authflow.Transition, error) {
	var (
		draft authflow.RegistrationDraft
		err   error
	)
	if draft.FirstName, err = p.line("First name"); err != nil {
		return authflow.Transition{}, err
	}
	if draft.LastName, err = p.line("Last name"); err != nil {
		return authflow.Transition{}, err
	}
	userType, err := p.line("Account type [tenant/landlord]")
	if err != nil {
		return authflow.Transition{}, err
	}
	draft.UserType = authflow.UserType(strings.ToLower(strings.TrimSpace(userType)))
	if draft.Password, err = p.secret("Password"); err != nil {
		return authflow.Transition{}, err
	}
	if draft.ConfirmPassword, err = p.secret("Confirm password"); err != nil {
		return authflow.Transition{}, err
	}
	return flow.SubmitRegistration(ctx, fc, draft), nil
}

func render(out io.Writer, t authflow.Transition) {
	for _, v := range t.Violations {
		fmt.Fprintf(out, "  %s: %s\n", v.Field, v.Message)
	}
	if t.Message != "" && len(t.Violations) == 0 {
		fmt.Fprintf(out, "! %s\n", t.Message)
	}
	if t.Notice != "" {
		fmt.Fprintf(out, "* %s\n", t.Notice)
	}
	if t.Advanced() {
		fmt.Fprintf(out, "-> %s\n", t.To)
	}
}
