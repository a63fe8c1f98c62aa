package authflow

import (
	"context"
)

const (
	auditEventSessionRestored    = "session_restored"
	auditEventSessionAbsent      = "session_absent"
	auditEventIdentifierKnown    = "identifier_known"
	auditEventIdentifierUnknown  = "identifier_unknown"
	auditEventOTPSent            = "otp_sent"
	auditEventOTPSendFailure     = "otp_send_failure"
	auditEventOTPVerified        = "otp_verified"
	auditEventOTPRejected        = "otp_rejected"
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventRegisterSuccess    = "register_success"
	auditEventRegisterFailure    = "register_failure"
	auditEventProfileIncomplete  = "profile_incomplete"
	auditEventPasswordReset      = "password_reset_success"
	auditEventPasswordResetFail  = "password_reset_failure"
	auditEventSignOut            = "sign_out"
	auditEventValidationRejected = "validation_rejected"
	auditEventTransportError     = "transport_error"
)

// AuditErrorCode classifies a failed audit event.
type AuditErrorCode string

const (
	auditErrRejected   AuditErrorCode = "backend_rejected"
	auditErrValidation AuditErrorCode = "validation"
	auditErrTransport  AuditErrorCode = "transport"
	auditErrPartial    AuditErrorCode = "partial_success"
)

func (f *Flow) emitAudit(
	ctx context.Context,
	eventType string,
	t Transition,
	success bool,
	code AuditErrorCode,
	metadataBuilder func() map[string]string,
) {
	if f == nil || f.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType:      eventType,
		Step:           t.From.String(),
		Journey:        string(t.Flow.Journey),
		IdentifierKind: string(t.Flow.Identifier.Kind),
		Identifier:     maskIdentifier(t.Flow.Identifier),
		Success:        success,
		Error:          string(code),
		Metadata:       metadata,
	}
	if t.Result.User != nil {
		event.UserID = t.Result.User.ID
	}

	f.audit.Emit(ctx, event)
}
