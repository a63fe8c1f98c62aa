package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWith(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	root := NewRootCommand()
	root.SetOut(buf)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(input))
	root.SetArgs(append([]string{"--config", writeConfig(t, "")}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestRunLogin(t *testing.T) {
	out, err := runWith(t, "email\nexist@example.com\npassword\n", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Language: en")
	assert.Contains(t, out, "-> password")
	assert.Contains(t, out, "Signed in as mock-id")
}

func TestRunWrongPasswordThenRetry(t *testing.T) {
	out, err := runWith(t, "email\nexist@example.com\nnope\npassword\n", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "! Invalid credentials")
	assert.Contains(t, out, "-> complete")
}

func TestRunRegisterThenLogin(t *testing.T) {
	input := strings.Join([]string{
		"phone", "+15551234567",
		"0000", "1234",
		"Jane", "Doe", "landlord", "Secret#123", "Secret#123",
		"email", "exist@example.com", "password",
	}, "\n") + "\n"

	out, err := runWith(t, input, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "-> otp-verify")
	assert.Contains(t, out, "! Invalid OTP")
	assert.Contains(t, out, "-> register")
	assert.Contains(t, out, "* Account created! Please login.")
	assert.Contains(t, out, "Signed in")
}

func TestRunForgotPassword(t *testing.T) {
	input := strings.Join([]string{
		"email", "exist@example.com",
		"forgot", "",
		"1234",
		"Newpass#1", "Newpass#1",
		"email", "exist@example.com", "password",
	}, "\n") + "\n"

	out, err := runWith(t, input, "run", "--sign-out")
	require.NoError(t, err)
	assert.Contains(t, out, "-> reset-password")
	assert.Contains(t, out, "* Password reset successful!")
	assert.Contains(t, out, "-> entry")
}

func TestRunValidationViolations(t *testing.T) {
	out, err := runWith(t, "email\nnot-an-email\n", "run")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Invalid email address")
}

func TestRunEOF(t *testing.T) {
	_, err := runWith(t, "", "run")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "input ended")
}
