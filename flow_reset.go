package authflow

import (
	"context"
)

// SubmitNewPassword runs the ResetPassword step. The backend applies the
// password to the session established by the preceding OTP verification.
func (f *Flow) SubmitNewPassword(ctx context.Context, fc FlowContext, password, confirm string) Transition {
	if t, ok := f.requireContext(ctx, StepResetPassword, fc, JourneyForgotPassword); !ok {
		return t
	}
	if v := ValidateNewPassword(password, confirm); len(v) > 0 {
		return f.reject(ctx, StepResetPassword, fc, v)
	}

	res, err := f.call(ctx, "reset_password", func(ctx context.Context) (AuthResult, error) {
		return f.backend.ResetPassword(ctx, password)
	})
	if err != nil {
		f.metricInc(MetricPasswordResetFailure)
		return f.transportFailure(ctx, StepResetPassword, fc, MsgGeneric)
	}
	if !res.Success {
		f.metricInc(MetricPasswordResetFailure)
		t := stay(StepResetPassword, fc)
		t.Result = res
		t.Message = messageOr(res.Error, MsgGeneric)
		f.emitAudit(ctx, auditEventPasswordResetFail, t, false, auditErrRejected, nil)
		return f.logged(t)
	}

	f.metricInc(MetricPasswordResetSuccess)
	t := advance(StepResetPassword, fc, EventPasswordReset, res)
	t.Notice = MsgPasswordReset
	f.emitAudit(ctx, auditEventPasswordReset, t, true, "", nil)
	return f.logged(t)
}
