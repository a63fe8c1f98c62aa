package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/mock"
)

func newMockFlow(t *testing.T) *authflow.Flow {
	t.Helper()
	cfg := authflow.DefaultConfig()
	cfg.Flow.SplashMinDelay = 0
	flow, err := authflow.New().
		WithConfig(cfg).
		WithBackend(mock.New(mock.NoDelays(), nil)).
		Build()
	require.NoError(t, err)
	t.Cleanup(flow.Close)
	return flow
}

func parseScenario(t *testing.T, src string) *Scenario {
	t.Helper()
	var sc Scenario
	require.NoError(t, yaml.Unmarshal([]byte(src), &sc))
	return &sc
}

const registerScenario = `
name: register by phone
steps:
  - action: start
    expect: {step: entry}
  - action: submit_identifier
    value: "+15551234567"
    kind: phone
    expect: {step: otp-verify, journey: register}
  - action: resend_otp
    expect: {step: otp-verify, advanced: false}
  - action: submit_otp
    code: "1234"
    expect: {step: register}
  - action: submit_registration
    first_name: Jane
    last_name: Doe
    password: "Secret#123"
    confirm: "Secret#12"
    expect: {step: register, violations: [confirm_password]}
  - action: submit_registration
    first_name: Jane
    last_name: Doe
    password: "Secret#123"
    confirm: "Secret#123"
    expect: {step: entry, notice: "Account created! Please login."}
`

func TestRunScenarioPasses(t *testing.T) {
	report := RunScenario(context.Background(), newMockFlow(t), parseScenario(t, registerScenario))
	for _, s := range report.Steps {
		assert.Empty(t, s.Failures, "step %d (%s)", s.Index, s.Action)
	}
	assert.True(t, report.Passed)
	assert.Len(t, report.Steps, 6)
}

func TestRunScenarioReportsMismatches(t *testing.T) {
	sc := parseScenario(t, `
name: wrong expectations
steps:
  - action: submit_identifier
    value: exist@example.com
    kind: email
    expect: {step: otp-verify, journey: register}
  - action: submit_password
    password: wrong
    expect: {message: "Invalid credentials", advanced: false}
  - action: teleport
`)
	report := RunScenario(context.Background(), newMockFlow(t), sc)
	require.False(t, report.Passed)
	require.Len(t, report.Steps, 3)
	assert.Len(t, report.Steps[0].Failures, 2)
	assert.Empty(t, report.Steps[1].Failures)
	assert.Contains(t, report.Steps[2].Failures[0], "unknown action")
}

func TestSignOutFromComplete(t *testing.T) {
	sc := parseScenario(t, `
steps:
  - action: submit_identifier
    value: exist@example.com
    kind: email
  - action: submit_password
    password: password
    expect: {step: complete}
  - action: sign_out
    expect: {step: entry}
`)
	report := RunScenario(context.Background(), newMockFlow(t), sc)
	assert.True(t, report.Passed)
}

func writeScenario(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestScenarioCommand(t *testing.T) {
	path := writeScenario(t, "register.yaml", registerScenario)

	out, err := runWith(t, "", "scenario", path)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS register by phone")
}

func TestScenarioCommandFailure(t *testing.T) {
	path := writeScenario(t, "bad.yaml", `
name: bad
steps:
  - action: start
    expect: {step: complete}
`)
	out, err := runWith(t, "", "scenario", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL bad")
	assert.Contains(t, out, "step: want complete, got entry")
}

func TestScenarioCommandJSON(t *testing.T) {
	path := writeScenario(t, "register.yaml", registerScenario)

	out, err := runWith(t, "", "--format", "json", "scenario", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []ScenarioReport `json:"data"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewBufferString(out)).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].Passed)
}

func TestLoadScenarioErrors(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadScenario(writeScenario(t, "empty.yaml", "name: empty\n"))
	assert.ErrorContains(t, err, "no steps")

	sc, err := LoadScenario(writeScenario(t, "unnamed.yaml", "steps:\n  - action: start\n"))
	require.NoError(t, err)
	assert.Contains(t, sc.Name, "unnamed.yaml")
}
