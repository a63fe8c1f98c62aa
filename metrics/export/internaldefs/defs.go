package internaldefs

import (
	"github.com/rentoapp/authflow"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events dropped by the audit dispatcher.
const AuditDroppedName = "authflow_audit_dropped_total"

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricIdentifierKnown, Name: "authflow_identifier_known_total", Help: "Entry submissions routed to password login."},
	{ID: authflow.MetricIdentifierUnknown, Name: "authflow_identifier_unknown_total", Help: "Entry submissions routed to registration."},
	{ID: authflow.MetricOTPSendSuccess, Name: "authflow_otp_send_success_total", Help: "Codes issued, including resends."},
	{ID: authflow.MetricOTPSendFailure, Name: "authflow_otp_send_failure_total", Help: "Code issuances rejected by the backend."},
	{ID: authflow.MetricOTPVerifySuccess, Name: "authflow_otp_verify_success_total", Help: "Accepted codes."},
	{ID: authflow.MetricOTPVerifyFailure, Name: "authflow_otp_verify_failure_total", Help: "Rejected codes."},
	{ID: authflow.MetricLoginSuccess, Name: "authflow_login_success_total", Help: "Successful password logins."},
	{ID: authflow.MetricLoginFailure, Name: "authflow_login_failure_total", Help: "Failed password logins."},
	{ID: authflow.MetricRegisterSuccess, Name: "authflow_register_success_total", Help: "Completed registrations."},
	{ID: authflow.MetricRegisterFailure, Name: "authflow_register_failure_total", Help: "Registrations rejected by the backend."},
	{ID: authflow.MetricProfileIncomplete, Name: "authflow_profile_incomplete_total", Help: "Registrations that left no profile record."},
	{ID: authflow.MetricPasswordResetSuccess, Name: "authflow_password_reset_success_total", Help: "Completed password resets."},
	{ID: authflow.MetricPasswordResetFailure, Name: "authflow_password_reset_failure_total", Help: "Password resets rejected by the backend."},
	{ID: authflow.MetricValidationRejected, Name: "authflow_validation_rejected_total", Help: "Submissions rejected before any backend call."},
	{ID: authflow.MetricTransportError, Name: "authflow_transport_error_total", Help: "Backend calls that failed unexpectedly."},
	{ID: authflow.MetricSessionRestored, Name: "authflow_session_restored_total", Help: "Startups that resumed an existing session."},
	{ID: authflow.MetricSignOut, Name: "authflow_sign_out_total", Help: "Sign-outs."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricBackendLatency, Name: "authflow_backend_latency_seconds", Help: "Backend call latency."},
}

// HistogramBounds are the upper bounds, in seconds, of each bucket.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
