package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rentoapp/authflow"
)

// Scenario actions.
const (
	ActionStart              = "start"
	ActionSubmitIdentifier   = "submit_identifier"
	ActionSubmitPassword     = "submit_password"
	ActionSubmitOTP          = "submit_otp"
	ActionResendOTP          = "resend_otp"
	ActionForgotPassword     = "forgot_password"
	ActionSubmitRegistration = "submit_registration"
	ActionSubmitNewPassword  = "submit_new_password"
	ActionSignOut            = "sign_out"
)

// Scenario is a scripted walk through the flow.
type Scenario struct {
	Name  string         `yaml:"name"`
	Steps []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one submission and what it must produce.
type ScenarioStep struct {
	Action    string `yaml:"action"`
	Value     string `yaml:"value,omitempty"`
	Kind      string `yaml:"kind,omitempty"`
	Password  string `yaml:"password,omitempty"`
	Confirm   string `yaml:"confirm,omitempty"`
	Code      string `yaml:"code,omitempty"`
	FirstName string `yaml:"first_name,omitempty"`
	LastName  string `yaml:"last_name,omitempty"`
	UserType  string `yaml:"user_type,omitempty"`

	Expect Expectation `yaml:"expect"`
}

// Expectation lists the checked parts of a transition. Empty fields are
// not checked.
type Expectation struct {
	Step       string   `yaml:"step,omitempty"`
	Journey    string   `yaml:"journey,omitempty"`
	Message    string   `yaml:"message,omitempty"`
	Notice     string   `yaml:"notice,omitempty"`
	Advanced   *bool    `yaml:"advanced,omitempty"`
	Violations []string `yaml:"violations,omitempty"`
}

// StepReport is the outcome of one scenario step.
type StepReport struct {
	Index    int      `json:"index"`
	Action   string   `json:"action"`
	To       string   `json:"to"`
	Message  string   `json:"message,omitempty"`
	Notice   string   `json:"notice,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

// ScenarioReport is the outcome of a scenario.
type ScenarioReport struct {
	Name   string       `json:"name"`
	Passed bool         `json:"passed"`
	Steps  []StepReport `json:"steps"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("%s: no steps", path)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return &sc, nil
}

// RunScenario executes every step of sc against flow, carrying the flow
// context of each transition into the next step. All steps run even after
// a failure so the report shows every mismatch.
func RunScenario(ctx context.Context, flow *authflow.Flow, sc *Scenario) ScenarioReport {
	report := ScenarioReport{Name: sc.Name, Passed: true}

	var (
		fc   authflow.FlowContext
		step = authflow.StepSplash
	)
	for i, s := range sc.Steps {
		t, err := apply(ctx, flow, s, fc, step)
		r := StepReport{Index: i, Action: s.Action}
		if err != nil {
			r.Failures = []string{err.Error()}
		} else {
			r.To, r.Message, r.Notice = t.To.String(), t.Message, t.Notice
			r.Failures = s.Expect.check(t)
			fc, step = t.Flow, t.To
		}
		if len(r.Failures) > 0 {
			report.Passed = false
		}
		report.Steps = append(report.Steps, r)
	}
	return report
}

func apply(ctx context.Context, flow *authflow.Flow, s ScenarioStep, fc authflow.FlowContext, at authflow.Step) (authflow.Transition, error) {
	switch s.Action {
	case ActionStart:
		return flow.Start(ctx), nil
	case ActionSubmitIdentifier:
		kind := authflow.IdentifierKind(strings.ToLower(s.Kind))
		if s.Kind == "" {
			kind = authflow.KindUnknown
		}
		return flow.SubmitIdentifier(ctx, s.Value, kind), nil
	case ActionSubmitPassword:
		return flow.SubmitPassword(ctx, fc, s.Password), nil
	case ActionSubmitOTP:
		return flow.SubmitOTP(ctx, fc, s.Code), nil
	case ActionResendOTP:
		return flow.ResendOTP(ctx, fc), nil
	case ActionForgotPassword:
		value := s.Value
		if value == "" {
			value = fc.Identifier.Value
		}
		return flow.ForgotPassword(ctx, value), nil
	case ActionSubmitRegistration:
		return flow.SubmitRegistration(ctx, fc, authflow.RegistrationDraft{
			FirstName:       s.FirstName,
			LastName:        s.LastName,
			Password:        s.Password,
			ConfirmPassword: s.Confirm,
			UserType:        authflow.UserType(s.UserType),
		}), nil
	case ActionSubmitNewPassword:
		return flow.SubmitNewPassword(ctx, fc, s.Password, s.Confirm), nil
	case ActionSignOut:
		return flow.SignOut(ctx, at), nil
	default:
		return authflow.Transition{}, fmt.Errorf("unknown action %q", s.Action)
	}
}

func (e Expectation) check(t authflow.Transition) []string {
	var failures []string
	if e.Step != "" && e.Step != t.To.String() {
		failures = append(failures, fmt.Sprintf("step: want %s, got %s", e.Step, t.To))
	}
	if e.Journey != "" && e.Journey != string(t.Flow.Journey) {
		failures = append(failures, fmt.Sprintf("journey: want %s, got %q", e.Journey, t.Flow.Journey))
	}
	if e.Message != "" && e.Message != t.Message {
		failures = append(failures, fmt.Sprintf("message: want %q, got %q", e.Message, t.Message))
	}
	if e.Notice != "" && e.Notice != t.Notice {
		failures = append(failures, fmt.Sprintf("notice: want %q, got %q", e.Notice, t.Notice))
	}
	if e.Advanced != nil && *e.Advanced != t.Advanced() {
		failures = append(failures, fmt.Sprintf("advanced: want %t, got %t", *e.Advanced, t.Advanced()))
	}
	for _, field := range e.Violations {
		found := false
		for _, v := range t.Violations {
			if v.Field == field {
				found = true
				break
			}
		}
		if !found {
			failures = append(failures, fmt.Sprintf("violation on %s expected", field))
		}
	}
	return failures
}

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Realtime bool
}

// NewScenarioCommand runs scenario files, each against a fresh backend.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file>...",
		Short: "Run scripted flow scenarios",
		Long: `Run YAML scenarios. Each step names an action and the expected
transition:

  name: existing user login
  steps:
    - action: start
      expect: {step: entry}
    - action: submit_identifier
      value: exist@example.com
      kind: email
      expect: {step: password, journey: login}

Exit codes:
  0 - All scenarios passed
  1 - At least one scenario failed
  2 - Command error`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Realtime, "realtime", false, "keep mock latencies and the splash delay")
	return cmd
}

func runScenarios(cmd *cobra.Command, opts *ScenarioOptions, paths []string) error {
	s := opts.Settings
	if !opts.Realtime {
		s.MockInstant = true
		s.SplashMinDelay = 0
	}
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	var reports []ScenarioReport
	failed := 0
	for _, path := range paths {
		sc, err := LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "load scenario", err)
		}

		scoped := *opts.RootOptions
		scoped.Settings = s
		app, err := scoped.wire(cmd)
		if err != nil {
			return err
		}
		report := RunScenario(cmd.Context(), app.Flow, sc)
		app.Close()

		if !report.Passed {
			failed++
		}
		reports = append(reports, report)
		if opts.Format != "json" {
			printReport(cmd, report)
		}
	}

	if opts.Format == "json" {
		if failed > 0 {
			_ = f.Failure(fmt.Sprintf("%d of %d scenarios failed", failed, len(reports)), reports)
		} else {
			_ = f.Success(reports, "")
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", failed, len(reports)))
	}
	return nil
}

func printReport(cmd *cobra.Command, r ScenarioReport) {
	out := cmd.OutOrStdout()
	status := "PASS"
	if !r.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(out, "%s %s\n", status, r.Name)
	for _, s := range r.Steps {
		for _, msg := range s.Failures {
			fmt.Fprintf(out, "  step %d (%s): %s\n", s.Index, s.Action, msg)
		}
	}
}
