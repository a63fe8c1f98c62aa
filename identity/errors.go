package identity

import "github.com/rentoapp/authflow"

// Domain error codes carried by *authflow.BackendError.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidOTP         = "otp_invalid"
	CodeRateLimited        = "over_request_rate_limit"
	CodeUserExists         = "user_already_exists"
	CodeSessionMissing     = "session_missing"
	CodeWeakPassword       = "weak_password"
)

const (
	msgRateLimited  = "Too many requests. Please try again later."
	msgUserExists   = "User already registered"
	msgWeakPassword = "Password does not meet requirements"
)

var (
	errInvalidCredentials = authflow.NewBackendError(CodeInvalidCredentials, authflow.MsgInvalidCredentials)
	errInvalidOTP         = authflow.NewBackendError(CodeInvalidOTP, authflow.MsgInvalidOTP)
	errRateLimited        = authflow.NewBackendError(CodeRateLimited, msgRateLimited)
	errUserExists         = authflow.NewBackendError(CodeUserExists, msgUserExists)
	errSessionMissing     = authflow.NewBackendError(CodeSessionMissing, authflow.MsgSessionMissing)
	errWeakPassword       = authflow.NewBackendError(CodeWeakPassword, msgWeakPassword)
)
