package authflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Start runs the Splash step. It checks for an existing session and profile
// concurrently with the configured minimum splash delay, and never reports
// an error: a failed or slow check routes to Entry.
func (f *Flow) Start(ctx context.Context) Transition {
	started := time.Now()

	userID, restored, err := f.lookupSession(ctx)
	if err != nil {
		f.logger.Warn("session check failed", zap.Error(err))
	}

	if wait := f.config.Flow.SplashMinDelay - time.Since(started); wait > 0 {
		_ = f.sleep(ctx, wait)
	}

	if restored {
		f.metricInc(MetricSessionRestored)
		t := advance(StepSplash, FlowContext{}, EventSessionRestored, AuthResult{
			Success: true,
			User:    &User{ID: userID},
		})
		f.emitAudit(ctx, auditEventSessionRestored, t, true, "", nil)
		return f.logged(t)
	}

	t := advance(StepSplash, FlowContext{}, EventNoSession, AuthResult{})
	f.emitAudit(ctx, auditEventSessionAbsent, t, true, "", nil)
	return f.logged(t)
}

// lookupSession asks an optional [SessionChecker] for a session with a
// profile. The check is abandoned after the session-check timeout even when
// the backend ignores ctx.
func (f *Flow) lookupSession(ctx context.Context) (string, bool, error) {
	checker, ok := f.backend.(SessionChecker)
	if !ok {
		return "", false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Flow.SessionCheckTimeout)
	defer cancel()

	type outcome struct {
		userID   string
		restored bool
		err      error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("session check panic: %v", r)}
			}
		}()

		sess, found, err := checker.CurrentSession(ctx)
		if err != nil || !found || sess == nil {
			done <- outcome{err: err}
			return
		}
		has, err := checker.HasProfile(ctx, sess.UserID)
		done <- outcome{userID: sess.UserID, restored: err == nil && has, err: err}
	}()

	select {
	case o := <-done:
		return o.userID, o.restored, o.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return "", false, ErrSessionCheckTimeout
		}
		return "", false, ctx.Err()
	}
}

// SubmitIdentifier runs the Entry step. A known identifier routes to
// Password on the login journey. An unknown one is sent a code and routes to
// OTPVerify on the register journey. The kind is taken as declared and
// carried forward in the returned [FlowContext].
func (f *Flow) SubmitIdentifier(ctx context.Context, value string, kind IdentifierKind) Transition {
	value = strings.TrimSpace(value)
	fc := FlowContext{Identifier: Identifier{Value: value, Kind: kind}}

	if v := ValidateIdentifier(value, kind); len(v) > 0 {
		return f.reject(ctx, StepEntry, fc, v)
	}

	res, err := f.call(ctx, "check_user_exists", func(ctx context.Context) (AuthResult, error) {
		return AuthResult{Success: f.backend.CheckUserExists(ctx, fc.Identifier)}, nil
	})
	if err == nil && res.Success {
		f.metricInc(MetricIdentifierKnown)
		fc.Journey = JourneyLogin
		t := advance(StepEntry, fc, EventUserKnown, AuthResult{Success: true})
		f.emitAudit(ctx, auditEventIdentifierKnown, t, true, "", nil)
		return f.logged(t)
	}

	// Lookup failures are treated as "does not exist".
	f.metricInc(MetricIdentifierUnknown)
	fc.Journey = JourneyRegister
	f.emitAudit(ctx, auditEventIdentifierUnknown, stay(StepEntry, fc), true, "", nil)

	return f.sendCode(ctx, StepEntry, fc, MsgSendOTPFailed)
}

// sendCode issues SendOTP for fc and advances step on success.
func (f *Flow) sendCode(ctx context.Context, step Step, fc FlowContext, failMsg string) Transition {
	res, err := f.call(ctx, "send_otp", func(ctx context.Context) (AuthResult, error) {
		return f.backend.SendOTP(ctx, fc.Identifier)
	})
	if err != nil {
		f.metricInc(MetricOTPSendFailure)
		return f.transportFailure(ctx, step, fc, MsgGeneric)
	}
	if !res.Success {
		f.metricInc(MetricOTPSendFailure)
		t := stay(step, fc)
		t.Result = res
		t.Message = messageOr(res.Error, failMsg)
		f.emitAudit(ctx, auditEventOTPSendFailure, t, false, auditErrRejected, nil)
		return f.logged(t)
	}

	f.metricInc(MetricOTPSendSuccess)
	t := advance(step, fc, EventOTPSent, res)
	f.emitAudit(ctx, auditEventOTPSent, t, true, "", nil)
	return f.logged(t)
}

// SignOut ends the backend session when the backend supports it and
// returns the flow to Entry. A sign-out failure is logged, not returned.
func (f *Flow) SignOut(ctx context.Context, from Step) Transition {
	if so, ok := f.backend.(SignOuter); ok {
		_, _ = f.call(ctx, "sign_out", func(ctx context.Context) (AuthResult, error) {
			return AuthResult{}, so.SignOut(ctx)
		})
	}
	f.metricInc(MetricSignOut)
	t := Transition{From: from, To: Next(from, "", EventSignedOut), Result: AuthResult{Success: true}}
	f.emitAudit(ctx, auditEventSignOut, t, true, "", nil)
	return f.logged(t)
}
