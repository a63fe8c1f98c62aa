package authflow

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// SubmitRegistration runs the Register step. The draft identifier defaults
// to the one in fc and the user type defaults to tenant. A success routes
// back to Entry with a confirmation notice; the user logs in afterwards.
func (f *Flow) SubmitRegistration(ctx context.Context, fc FlowContext, draft RegistrationDraft) Transition {
	if t, ok := f.requireContext(ctx, StepRegister, fc, JourneyRegister); !ok {
		return t
	}

	draft.FirstName = strings.TrimSpace(draft.FirstName)
	draft.LastName = strings.TrimSpace(draft.LastName)
	if draft.Identifier.Value == "" {
		draft.Identifier = fc.Identifier
	}
	if !draft.UserType.Valid() {
		draft.UserType = UserTypeTenant
	}

	if v := ValidateRegistration(draft); len(v) > 0 {
		return f.reject(ctx, StepRegister, fc, v)
	}

	res, err := f.call(ctx, "register", func(ctx context.Context) (AuthResult, error) {
		return f.backend.Register(ctx, draft)
	})
	if err != nil {
		f.metricInc(MetricRegisterFailure)
		return f.transportFailure(ctx, StepRegister, fc, MsgRegistrationError)
	}
	if !res.Success {
		f.metricInc(MetricRegisterFailure)
		t := stay(StepRegister, fc)
		t.Result = res
		t.Message = messageOr(res.Error, MsgRegistrationFailed)
		f.emitAudit(ctx, auditEventRegisterFailure, t, false, auditErrRejected, nil)
		return f.logged(t)
	}

	f.metricInc(MetricRegisterSuccess)
	t := advance(StepRegister, fc, EventRegistered, res)
	t.Notice = MsgAccountCreated
	f.emitAudit(ctx, auditEventRegisterSuccess, t, true, "", nil)

	if res.ProfileIncomplete {
		f.metricInc(MetricProfileIncomplete)
		f.logger.Warn("registered without profile record",
			zap.String("identifier", maskIdentifier(fc.Identifier)),
		)
		f.emitAudit(ctx, auditEventProfileIncomplete, t, false, auditErrPartial, nil)
	}
	return f.logged(t)
}
