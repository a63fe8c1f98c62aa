package authflow

import (
	"context"
	"strings"
)

// SubmitOTP runs the OTPVerify step for the register and forgot-password
// journeys. Codes that are not exactly [OTPLength] characters are rejected
// without a backend call. On the forgot-password journey the verified code
// is returned as the transition Token.
func (f *Flow) SubmitOTP(ctx context.Context, fc FlowContext, code string) Transition {
	if t, ok := f.requireContext(ctx, StepOTPVerify, fc, JourneyRegister, JourneyForgotPassword); !ok {
		return t
	}
	code = strings.TrimSpace(code)
	if !CodeReady(code) {
		return f.reject(ctx, StepOTPVerify, fc, []Violation{{Field: "code", Message: MsgInvalidCode}})
	}

	res, err := f.call(ctx, "verify_otp", func(ctx context.Context) (AuthResult, error) {
		return f.backend.VerifyOTP(ctx, fc.Identifier, code)
	})
	if err != nil {
		f.metricInc(MetricOTPVerifyFailure)
		return f.transportFailure(ctx, StepOTPVerify, fc, MsgGeneric)
	}
	if !res.Success {
		f.metricInc(MetricOTPVerifyFailure)
		t := stay(StepOTPVerify, fc)
		t.Result = res
		t.Message = messageOr(res.Error, MsgInvalidCode)
		f.emitAudit(ctx, auditEventOTPRejected, t, false, auditErrRejected, nil)
		return f.logged(t)
	}

	f.metricInc(MetricOTPVerifySuccess)
	t := advance(StepOTPVerify, fc, EventOTPVerified, res)
	if fc.Journey == JourneyForgotPassword {
		t.Token = code
	}
	f.emitAudit(ctx, auditEventOTPVerified, t, true, "", nil)
	return f.logged(t)
}

// ResendOTP sends a fresh code for fc and stays on OTPVerify.
func (f *Flow) ResendOTP(ctx context.Context, fc FlowContext) Transition {
	if t, ok := f.requireContext(ctx, StepOTPVerify, fc, JourneyRegister, JourneyForgotPassword); !ok {
		return t
	}
	// OTPVerify has no OTPSent edge, so a successful resend stays put.
	return f.sendCode(ctx, StepOTPVerify, fc, MsgSendOTPFailed)
}

// ForgotPassword runs the ForgotPassword step. The kind is classified from
// the value and the journey becomes forgot-password.
func (f *Flow) ForgotPassword(ctx context.Context, value string) Transition {
	value = strings.TrimSpace(value)
	fc := FlowContext{
		Identifier: Identifier{Value: value, Kind: ClassifyIdentifier(value)},
		Journey:    JourneyForgotPassword,
	}
	if value == "" {
		return f.reject(ctx, StepForgotPassword, fc, []Violation{{Field: "identifier", Message: MsgRequired}})
	}
	return f.sendCode(ctx, StepForgotPassword, fc, MsgSendCodeFailed)
}
