package authflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubBackend struct {
	mu    sync.Mutex
	calls map[string]int

	exists bool

	sendResult     AuthResult
	sendErr        error
	verifyResult   AuthResult
	verifyErr      error
	loginResult    AuthResult
	loginErr       error
	registerResult AuthResult
	registerErr    error
	resetResult    AuthResult
	resetErr       error

	panicOn string

	lastIdentifier Identifier
	lastDraft      RegistrationDraft
	lastPassword   string
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		sendResult:     AuthResult{Success: true},
		verifyResult:   AuthResult{Success: true, User: &User{ID: "u-otp"}},
		loginResult:    AuthResult{Success: true, User: &User{ID: "u-login"}},
		registerResult: AuthResult{Success: true, User: &User{ID: "u-new"}},
		resetResult:    AuthResult{Success: true},
	}
}

func (s *stubBackend) record(op string, id Identifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[op]++
	if id.Value != "" {
		s.lastIdentifier = id
	}
	if s.panicOn == op {
		panic("stub " + op)
	}
}

func (s *stubBackend) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *stubBackend) CheckUserExists(_ context.Context, id Identifier) bool {
	s.record("check", id)
	return s.exists
}

func (s *stubBackend) SendOTP(_ context.Context, id Identifier) (AuthResult, error) {
	s.record("send", id)
	return s.sendResult, s.sendErr
}

func (s *stubBackend) VerifyOTP(_ context.Context, id Identifier, _ string) (AuthResult, error) {
	s.record("verify", id)
	return s.verifyResult, s.verifyErr
}

func (s *stubBackend) Login(_ context.Context, id Identifier, _ string) (AuthResult, error) {
	s.record("login", id)
	return s.loginResult, s.loginErr
}

func (s *stubBackend) Register(_ context.Context, draft RegistrationDraft) (AuthResult, error) {
	s.record("register", draft.Identifier)
	s.mu.Lock()
	s.lastDraft = draft
	s.mu.Unlock()
	return s.registerResult, s.registerErr
}

func (s *stubBackend) ResetPassword(_ context.Context, password string) (AuthResult, error) {
	s.record("reset", Identifier{})
	s.mu.Lock()
	s.lastPassword = password
	s.mu.Unlock()
	return s.resetResult, s.resetErr
}

type sessionStub struct {
	*stubBackend

	session    *Session
	hasProfile bool
	block      chan struct{}
	signOutErr error
}

func (s *sessionStub) CurrentSession(context.Context) (*Session, bool, error) {
	if s.block != nil {
		<-s.block
	}
	return s.session, s.session != nil, nil
}

func (s *sessionStub) HasProfile(context.Context, string) (bool, error) {
	return s.hasProfile, nil
}

func (s *sessionStub) SignOut(context.Context) error {
	s.record("signout", Identifier{})
	return s.signOutErr
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Flow.SplashMinDelay = 0
	cfg.Flow.SessionCheckTimeout = 50 * time.Millisecond
	return cfg
}

func buildTestFlow(t testing.TB, backend Backend) *Flow {
	t.Helper()
	flow, err := New().WithConfig(testConfig()).WithBackend(backend).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(flow.Close)
	return flow
}

func TestSubmitIdentifierKnownRoutesToPassword(t *testing.T) {
	backend := newStubBackend()
	backend.exists = true
	flow := buildTestFlow(t, backend)

	tr := flow.SubmitIdentifier(context.Background(), "  exist@test.com ", KindEmail)
	if tr.To != StepPassword {
		t.Fatalf("expected password step, got %s", tr.To)
	}
	if tr.Flow.Journey != JourneyLogin {
		t.Fatalf("expected login journey, got %q", tr.Flow.Journey)
	}
	if tr.Flow.Identifier.Value != "exist@test.com" || tr.Flow.Identifier.Kind != KindEmail {
		t.Fatalf("unexpected identifier %+v", tr.Flow.Identifier)
	}
	if backend.count("send") != 0 {
		t.Fatalf("expected no SendOTP for known identifier")
	}
}

func TestSubmitIdentifierUnknownSendsOTP(t *testing.T) {
	backend := newStubBackend()
	flow := buildTestFlow(t, backend)

	tr := flow.SubmitIdentifier(context.Background(), "new@test.com", KindEmail)
	if tr.To != StepOTPVerify {
		t.Fatalf("expected otp step, got %s", tr.To)
	}
	if tr.Flow.Journey != JourneyRegister {
		t.Fatalf("expected register journey, got %q", tr.Flow.Journey)
	}
	if backend.count("send") != 1 {
		t.Fatalf("expected one SendOTP, got %d", backend.count("send"))
	}
}

func TestSubmitIdentifierValidationSkipsBackend(t *testing.T) {
	tests := []struct {
		name  string
		value string
		kind  IdentifierKind
		want  string
	}{
		{name: "bad email", value: "not-an-email", kind: KindEmail, want: MsgInvalidEmail},
		{name: "short phone", value: "1234567", kind: KindPhone, want: MsgPhoneTooShort},
		{name: "unknown kind", value: "someone@test.com", kind: KindUnknown, want: MsgRequired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := newStubBackend()
			flow := buildTestFlow(t, backend)

			tr := flow.SubmitIdentifier(context.Background(), tc.value, tc.kind)
			if tr.To != StepEntry || !tr.Rejected() {
				t.Fatalf("expected rejection on entry, got %+v", tr)
			}
			if tr.Message != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, tr.Message)
			}
			if backend.count("check") != 0 || backend.count("send") != 0 {
				t.Fatalf("expected no backend calls")
			}
		})
	}
}

func TestSubmitIdentifierSendFailureUsesBackendMessage(t *testing.T) {
	backend := newStubBackend()
	backend.sendResult = Failure("Rate limited")
	flow := buildTestFlow(t, backend)

	tr := flow.SubmitIdentifier(context.Background(), "12345678", KindPhone)
	if tr.To != StepEntry {
		t.Fatalf("expected to stay on entry, got %s", tr.To)
	}
	if tr.Message != "Rate limited" {
		t.Fatalf("expected backend message, got %q", tr.Message)
	}

	backend.sendResult = AuthResult{}
	tr = flow.SubmitIdentifier(context.Background(), "12345678", KindPhone)
	if tr.Message != MsgSendOTPFailed {
		t.Fatalf("expected fallback message, got %q", tr.Message)
	}
}

func TestSubmitIdentifierTransportErrorIsGeneric(t *testing.T) {
	backend := newStubBackend()
	backend.sendErr = errors.New("dial tcp: connection refused")
	flow := buildTestFlow(t, backend)

	tr := flow.SubmitIdentifier(context.Background(), "new@test.com", KindEmail)
	if tr.To != StepEntry || tr.Message != MsgGeneric {
		t.Fatalf("expected generic error on entry, got %+v", tr)
	}
	if got := flow.MetricsSnapshot().Counters[MetricTransportError]; got != 1 {
		t.Fatalf("expected one transport error, got %d", got)
	}
}

func TestBackendPanicBecomesTransportError(t *testing.T) {
	backend := newStubBackend()
	backend.exists = true
	backend.panicOn = "login"
	flow := buildTestFlow(t, backend)

	entry := flow.SubmitIdentifier(context.Background(), "exist@test.com", KindEmail)
	tr := flow.SubmitPassword(context.Background(), entry.Flow, "password")
	if tr.To != StepPassword || tr.Message != MsgGeneric {
		t.Fatalf("expected generic error on password, got %+v", tr)
	}
}

func TestSubmitPasswordCarriesDeclaredKind(t *testing.T) {
	backend := newStubBackend()
	backend.exists = true
	flow := buildTestFlow(t, backend)

	// A phone identifier containing '@' must not be reclassified.
	entry := flow.SubmitIdentifier(context.Background(), "+1555@0100200", KindPhone)
	tr := flow.SubmitPassword(context.Background(), entry.Flow, "password")
	if tr.To != StepComplete {
		t.Fatalf("expected complete, got %s", tr.To)
	}
	if backend.lastIdentifier.Kind != KindPhone {
		t.Fatalf("expected phone kind at login, got %q", backend.lastIdentifier.Kind)
	}
}

func TestSubmitPasswordFailureStays(t *testing.T) {
	backend := newStubBackend()
	backend.exists = true
	backend.loginResult = Failure(MsgInvalidCredentials)
	flow := buildTestFlow(t, backend)

	entry := flow.SubmitIdentifier(context.Background(), "exist@test.com", KindEmail)
	tr := flow.SubmitPassword(context.Background(), entry.Flow, "wrong")
	if tr.To != StepPassword || tr.Message != MsgInvalidCredentials {
		t.Fatalf("expected invalid credentials on password, got %+v", tr)
	}

	tr = flow.SubmitPassword(context.Background(), entry.Flow, "")
	if tr.Message != MsgRequired {
		t.Fatalf("expected required, got %q", tr.Message)
	}
	if backend.count("login") != 1 {
		t.Fatalf("expected empty password to skip backend, got %d calls", backend.count("login"))
	}
}

func TestSubmitOTPRequiresFourCharacters(t *testing.T) {
	backend := newStubBackend()
	flow := buildTestFlow(t, backend)

	entry := flow.SubmitIdentifier(context.Background(), "new@test.com", KindEmail)
	for _, code := range []string{"", "123", "12345"} {
		tr := flow.SubmitOTP(context.Background(), entry.Flow, code)
		if tr.To != StepOTPVerify || !tr.Rejected() {
			t.Fatalf("code %q: expected rejection, got %+v", code, tr)
		}
	}
	if backend.count("verify") != 0 {
		t.Fatalf("expected no VerifyOTP calls, got %d", backend.count("verify"))
	}
}

func TestSubmitOTPRoutesByJourney(t *testing.T) {
	backend := newStubBackend()
	flow := buildTestFlow(t, backend)

	register := flow.SubmitIdentifier(context.Background(), "new@test.com", KindEmail)
	tr := flow.SubmitOTP(context.Background(), register.Flow, "1234")
	if tr.To != StepRegister {
		t.Fatalf("expected register step, got %s", tr.To)
	}
	if tr.Token != "" {
		t.Fatalf("expected no token on register journey")
	}

	forgot := flow.ForgotPassword(context.Background(), "user@test.com")
	if forgot.To != StepOTPVerify || forgot.Flow.Journey != JourneyForgotPassword {
		t.Fatalf("expected otp step on forgot journey, got %+v", forgot)
	}
	tr = flow.SubmitOTP(context.Background(), forgot.Flow, "1234")
	if tr.To != StepResetPassword {
		t.Fatalf("expected reset step, got %s", tr.To)
	}
	if tr.Token != "1234" {
		t.Fatalf("expected token carried forward, got %q", tr.Token)
	}
}

func TestSubmitOTPFailureMessage(t *testing.T) {
	backend := newStubBackend()
	backend.verifyResult = AuthResult{}
	flow := buildTestFlow(t, backend)

	entry := flow.SubmitIdentifier(context.Background(), "new@test.com", KindEmail)
	tr := flow.SubmitOTP(context.Background(), entry.Flow, "0000")
	if tr.To != StepOTPVerify || tr.Message != MsgInvalidCode {
		t.Fatalf("expected invalid code on otp step, got %+v", tr)
	}
}

func TestSubmitOTPRejectsLoginJourney(t *testing.T) {
	backend := newStubBackend()
	flow := buildTestFlow(t, backend)

	fc := FlowContext{Identifier: Identifier{Value: "a@b.co", Kind: KindEmail}, Journey: JourneyLogin}
	tr := flow.SubmitOTP(context.Background(), fc, "1234")
	if tr.To != StepOTPVerify || !tr.Rejected() {
		t.Fatalf("expected rejection, got %+v", tr)
	}
	if backend.count("verify") != 0 {
		t.Fatalf("expected no VerifyOTP call")
	}
}

func TestResendOTPStaysOnVerify(t *testing.T) {
	backend := newStubBackend()
	flow := buildTestFlow(t, backend)

	entry := flow.SubmitIdentifier(context.Background(), "new@test.com", KindEmail)
	tr := flow.ResendOTP(context.Background(), entry.Flow)
	if tr.To != StepOTPVerify || !tr.Result.Success {
		t.Fatalf("expected successful resend on otp step, got %+v", tr)
	}
	if backend.count("send") != 2 {
		t.Fatalf("expected two SendOTP calls, got %d", backend.count("send"))
	}
}

func TestForgotPasswordClassifiesAndFails(t *testing.T) {
	backend := newStubBackend()
	backend.sendResult = AuthResult{}
	flow := buildTestFlow(t, backend)

	tr := flow.ForgotPassword(context.Background(), "5550100200")
	if tr.To != StepForgotPassword || tr.Message != MsgSendCodeFailed {
		t.Fatalf("expected send code failure, got %+v", tr)
	}
	if backend.lastIdentifier.Kind != KindPhone {
		t.Fatalf("expected phone classification, got %q", backend.lastIdentifier.Kind)
	}

	tr = flow.ForgotPassword(context.Background(), "   ")
	if tr.Message != MsgRequired {
		t.Fatalf("expected required, got %q", tr.Message)
	}
}

func TestSubmitRegistrationSuccessReturnsToEntry(t *testing.T) {
	backend := newStubBackend()
	flow := buildTestFlow(t, backend)

	entry := flow.SubmitIdentifier(context.Background(), "new@test.com", KindEmail)
	verified := flow.SubmitOTP(context.Background(), entry.Flow, "1234")

	tr := flow.SubmitRegistration(context.Background(), verified.Flow, RegistrationDraft{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Password:        "abcdef1!",
		ConfirmPassword: "abcdef1!",
	})
	if tr.To != StepEntry || tr.Notice != MsgAccountCreated {
		t.Fatalf("expected entry with notice, got %+v", tr)
	}
	if backend.lastDraft.Identifier.Value != "new@test.com" {
		t.Fatalf("expected draft identifier from flow context, got %+v", backend.lastDraft.Identifier)
	}
	if backend.lastDraft.UserType != UserTypeTenant {
		t.Fatalf("expected tenant default, got %q", backend.lastDraft.UserType)
	}
}

func TestSubmitRegistrationValidationAndFailures(t *testing.T) {
	backend := newStubBackend()
	flow := buildTestFlow(t, backend)
	fc := FlowContext{Identifier: Identifier{Value: "new@test.com", Kind: KindEmail}, Journey: JourneyRegister}

	tr := flow.SubmitRegistration(context.Background(), fc, RegistrationDraft{
		FirstName: "A",
		LastName:  "Lovelace",
		Password:  "abcdefgh",
	})
	if !tr.Rejected() || len(tr.Violations) != 4 {
		t.Fatalf("expected four violations, got %+v", tr.Violations)
	}
	if backend.count("register") != 0 {
		t.Fatalf("expected no Register call")
	}

	good := RegistrationDraft{FirstName: "Ada", LastName: "Lovelace", Password: "abcdef1!", ConfirmPassword: "abcdef1!"}

	backend.registerResult = AuthResult{}
	tr = flow.SubmitRegistration(context.Background(), fc, good)
	if tr.To != StepRegister || tr.Message != MsgRegistrationFailed {
		t.Fatalf("expected registration failed, got %+v", tr)
	}

	backend.registerErr = errors.New("timeout")
	tr = flow.SubmitRegistration(context.Background(), fc, good)
	if tr.To != StepRegister || tr.Message != MsgRegistrationError {
		t.Fatalf("expected registration error, got %+v", tr)
	}
}

func TestSubmitRegistrationProfileIncompleteCounted(t *testing.T) {
	backend := newStubBackend()
	backend.registerResult = AuthResult{Success: true, User: &User{ID: "u1"}, ProfileIncomplete: true}
	flow := buildTestFlow(t, backend)
	fc := FlowContext{Identifier: Identifier{Value: "new@test.com", Kind: KindEmail}, Journey: JourneyRegister}

	tr := flow.SubmitRegistration(context.Background(), fc, RegistrationDraft{
		FirstName: "Ada", LastName: "Lovelace", Password: "abcdef1!", ConfirmPassword: "abcdef1!",
	})
	if tr.To != StepEntry {
		t.Fatalf("expected entry, got %s", tr.To)
	}
	if got := flow.MetricsSnapshot().Counters[MetricProfileIncomplete]; got != 1 {
		t.Fatalf("expected MetricProfileIncomplete=1 got %d", got)
	}
}

func TestSubmitNewPassword(t *testing.T) {
	backend := newStubBackend()
	flow := buildTestFlow(t, backend)
	fc := FlowContext{Identifier: Identifier{Value: "user@test.com", Kind: KindEmail}, Journey: JourneyForgotPassword}

	tests := []struct {
		password string
		confirm  string
		want     string
	}{
		{password: "", confirm: "", want: MsgRequired},
		{password: "abcdefgh", confirm: "abcdefgX", want: MsgPasswordMismatch},
		{password: "short", confirm: "short", want: MsgPasswordShort},
	}
	for _, tc := range tests {
		tr := flow.SubmitNewPassword(context.Background(), fc, tc.password, tc.confirm)
		if tr.Message != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, tr.Message)
		}
	}
	if backend.count("reset") != 0 {
		t.Fatalf("expected no ResetPassword call")
	}

	tr := flow.SubmitNewPassword(context.Background(), fc, "newpassword", "newpassword")
	if tr.To != StepEntry || tr.Notice != MsgPasswordReset {
		t.Fatalf("expected entry with notice, got %+v", tr)
	}
	if backend.lastPassword != "newpassword" {
		t.Fatalf("expected password forwarded")
	}

	backend.resetResult = Failure(MsgSessionMissing)
	tr = flow.SubmitNewPassword(context.Background(), fc, "newpassword", "newpassword")
	if tr.To != StepResetPassword || tr.Message != MsgSessionMissing {
		t.Fatalf("expected session missing on reset step, got %+v", tr)
	}
}

func TestStartRoutesBySession(t *testing.T) {
	backend := &sessionStub{
		stubBackend: newStubBackend(),
		session:     &Session{UserID: "u1"},
		hasProfile:  true,
	}
	flow := buildTestFlow(t, backend)

	tr := flow.Start(context.Background())
	if tr.To != StepComplete {
		t.Fatalf("expected complete, got %s", tr.To)
	}
	if tr.Result.User == nil || tr.Result.User.ID != "u1" {
		t.Fatalf("expected restored user, got %+v", tr.Result.User)
	}

	backend.hasProfile = false
	if tr := flow.Start(context.Background()); tr.To != StepEntry {
		t.Fatalf("expected entry without profile, got %s", tr.To)
	}

	backend.session = nil
	if tr := flow.Start(context.Background()); tr.To != StepEntry {
		t.Fatalf("expected entry without session, got %s", tr.To)
	}
}

func TestStartWithoutSessionCheckerRoutesToEntry(t *testing.T) {
	flow := buildTestFlow(t, newStubBackend())
	if tr := flow.Start(context.Background()); tr.To != StepEntry {
		t.Fatalf("expected entry, got %s", tr.To)
	}
}

func TestStartHonorsMinimumDelay(t *testing.T) {
	backend := &sessionStub{stubBackend: newStubBackend()}
	flow := buildTestFlow(t, backend)
	flow.config.Flow.SplashMinDelay = 2 * time.Second

	var slept time.Duration
	flow.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	flow.Start(context.Background())
	if slept <= 0 || slept > 2*time.Second {
		t.Fatalf("expected remaining splash delay to be slept, got %v", slept)
	}
}

func TestStartSessionCheckTimeout(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	backend := &sessionStub{
		stubBackend: newStubBackend(),
		session:     &Session{UserID: "u1"},
		hasProfile:  true,
		block:       block,
	}
	flow := buildTestFlow(t, backend)
	flow.config.Flow.SessionCheckTimeout = 20 * time.Millisecond

	start := time.Now()
	tr := flow.Start(context.Background())
	if tr.To != StepEntry {
		t.Fatalf("expected entry after timeout, got %s", tr.To)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected timeout to bound Start, took %v", elapsed)
	}
}

func TestSignOutReturnsToEntry(t *testing.T) {
	backend := &sessionStub{stubBackend: newStubBackend(), signOutErr: errors.New("network down")}
	flow := buildTestFlow(t, backend)

	tr := flow.SignOut(context.Background(), StepComplete)
	if tr.From != StepComplete || tr.To != StepEntry {
		t.Fatalf("expected complete -> entry, got %+v", tr)
	}
	if backend.count("signout") != 1 {
		t.Fatalf("expected SignOut to be called once")
	}
}

func TestFlowConcurrentTraversals(t *testing.T) {
	backend := newStubBackend()
	flow := buildTestFlow(t, backend)

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			entry := flow.SubmitIdentifier(context.Background(), "new@test.com", KindEmail)
			if entry.To != StepOTPVerify {
				t.Errorf("expected otp step, got %s", entry.To)
				return
			}
			if tr := flow.SubmitOTP(context.Background(), entry.Flow, "1234"); tr.To != StepRegister {
				t.Errorf("expected register step, got %s", tr.To)
			}
		}()
	}
	wg.Wait()
}
