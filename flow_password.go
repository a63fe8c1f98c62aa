package authflow

import (
	"context"
)

// SubmitPassword runs the Password step of the login journey.
func (f *Flow) SubmitPassword(ctx context.Context, fc FlowContext, password string) Transition {
	if t, ok := f.requireContext(ctx, StepPassword, fc, JourneyLogin); !ok {
		return t
	}
	if password == "" {
		return f.reject(ctx, StepPassword, fc, []Violation{{Field: "password", Message: MsgRequired}})
	}

	res, err := f.call(ctx, "login", func(ctx context.Context) (AuthResult, error) {
		return f.backend.Login(ctx, fc.Identifier, password)
	})
	if err != nil {
		f.metricInc(MetricLoginFailure)
		return f.transportFailure(ctx, StepPassword, fc, MsgGeneric)
	}
	if !res.Success {
		f.metricInc(MetricLoginFailure)
		t := stay(StepPassword, fc)
		t.Result = res
		t.Message = messageOr(res.Error, MsgGeneric)
		f.emitAudit(ctx, auditEventLoginFailure, t, false, auditErrRejected, nil)
		return f.logged(t)
	}

	f.metricInc(MetricLoginSuccess)
	t := advance(StepPassword, fc, EventLoginSucceeded, res)
	f.emitAudit(ctx, auditEventLoginSuccess, t, true, "", nil)
	return f.logged(t)
}
