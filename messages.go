package authflow

// User-facing messages rendered verbatim by presentation layers.
const (
	MsgRequired          = "This field is required"
	MsgInvalidEmail      = "Invalid email address"
	MsgPhoneTooShort     = "Phone number too short"
	MsgPasswordShort     = "Min 8 chars"
	MsgPasswordNumber    = "Needs a number"
	MsgPasswordSpecial   = "Needs special char"
	MsgPasswordMismatch  = "Passwords don't match"
	MsgFirstNameRequired = "First name required"
	MsgLastNameRequired  = "Last name required"

	MsgGeneric            = "An error occurred"
	MsgSendOTPFailed      = "Failed to send OTP"
	MsgSendCodeFailed     = "Failed to send code"
	MsgInvalidCode        = "Invalid Code"
	MsgRegistrationFailed = "Registration failed"
	MsgRegistrationError  = "Error creating account"

	MsgAccountCreated = "Account created! Please login."
	MsgPasswordReset  = "Password reset successful! Please login with your new password."
)

// Messages reported by backends for expected failures.
const (
	MsgInvalidOTP         = "Invalid OTP"
	MsgInvalidCredentials = "Invalid credentials"
	MsgSessionMissing     = "Auth session missing!"
)
