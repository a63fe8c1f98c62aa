package authflow

import (
	"strings"
	"time"
)

// IdentifierKind is the channel an [Identifier] belongs to.
type IdentifierKind string

const (
	// KindUnknown asks the receiver to classify the identifier with [ClassifyIdentifier].
	KindUnknown IdentifierKind = ""
	// KindEmail marks an email address.
	KindEmail IdentifierKind = "email"
	// KindPhone marks a phone number.
	KindPhone IdentifierKind = "phone"
)

// Valid reports whether k is one of the concrete kinds.
func (k IdentifierKind) Valid() bool {
	return k == KindEmail || k == KindPhone
}

// ParseIdentifierKind maps "email" and "phone" (case-insensitive) to a kind.
func ParseIdentifierKind(s string) (IdentifierKind, error) {
	switch IdentifierKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindEmail:
		return KindEmail, nil
	case KindPhone:
		return KindPhone, nil
	default:
		return KindUnknown, ErrInvalidIdentifierKind
	}
}

// Identifier is a user-supplied email or phone string with its declared kind.
// It is created per submission and never persisted by the flow.
type Identifier struct {
	Value string         `json:"value" yaml:"value"`
	Kind  IdentifierKind `json:"kind" yaml:"kind"`
}

// Resolved returns a copy of id whose kind is concrete. When the kind is
// [KindUnknown] it is derived with [ClassifyIdentifier].
func (id Identifier) Resolved() Identifier {
	if id.Kind.Valid() {
		return id
	}
	return Identifier{Value: id.Value, Kind: ClassifyIdentifier(id.Value)}
}

// UserType is the application role attached to a profile record.
type UserType string

const (
	// UserTypeLandlord marks a property owner account.
	UserTypeLandlord UserType = "landlord"
	// UserTypeTenant marks a renter account. It is the default for new profiles.
	UserTypeTenant UserType = "tenant"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	return t == UserTypeLandlord || t == UserTypeTenant
}

// User is the minimal authenticated identity carried by an [AuthResult].
type User struct {
	ID        string   `json:"id"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	UserType  UserType `json:"user_type,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
}

// Session is an opaque handle to a backend session. The flow never inspects
// the token; only backends do.
type Session struct {
	AccessToken string    `json:"-"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuthResult is the outcome of any [Backend] call. Expected domain failures
// set Success to false and carry a human-readable Error.
type AuthResult struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	User    *User    `json:"user,omitempty"`
	Session *Session `json:"session,omitempty"`

	// ProfileIncomplete is set by Register when the identity was created but
	// the profile record could not be written.
	ProfileIncomplete bool `json:"profile_incomplete,omitempty"`
}

// Failure builds an unsuccessful result with msg.
func Failure(msg string) AuthResult {
	return AuthResult{Success: false, Error: msg}
}

// Profile is the application-specific user record keyed by identity id.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	UserType  UserType  `json:"user_type"`
	CreatedAt time.Time `json:"created_at"`
}

// User converts p into the identity shape attached to login results.
func (p Profile) User() *User {
	return &User{
		ID:        p.ID,
		Email:     p.Email,
		Phone:     p.Phone,
		UserType:  p.UserType,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}
}

// Journey is the multi-step journey a [FlowContext] belongs to.
type Journey string

const (
	// JourneyLogin is the known-account path from Entry to Password.
	JourneyLogin Journey = "login"
	// JourneyRegister is the unknown-account path through OTP verification.
	JourneyRegister Journey = "register"
	// JourneyForgotPassword is the reset path through OTP verification.
	JourneyForgotPassword Journey = "forgot-password"
)

// FlowContext is passed by the caller into every step decision. The
// identifier, its kind and the journey always travel together.
type FlowContext struct {
	Identifier Identifier `json:"identifier"`
	Journey    Journey    `json:"journey"`
}

// RegistrationDraft holds the registration fields collected on the Register
// step. It is discarded after submission.
type RegistrationDraft struct {
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Password        string     `json:"-"`
	ConfirmPassword string     `json:"-"`
	Identifier      Identifier `json:"identifier"`
	UserType        UserType   `json:"user_type,omitempty"`
}

// Step is one logical screen of the authentication flow.
type Step uint8

const (
	// StepSplash is the startup session check.
	StepSplash Step = iota
	// StepEntry collects the identifier.
	StepEntry
	// StepPassword collects the password of a known account.
	StepPassword
	// StepOTPVerify collects the one-time code.
	StepOTPVerify
	// StepRegister collects the registration draft.
	StepRegister
	// StepForgotPassword collects the identifier to reset.
	StepForgotPassword
	// StepResetPassword collects the new password.
	StepResetPassword
	// StepComplete is the authenticated terminal state.
	StepComplete
)

var stepNames = [...]string{
	StepSplash:         "splash",
	StepEntry:          "entry",
	StepPassword:       "password",
	StepOTPVerify:      "otp-verify",
	StepRegister:       "register",
	StepForgotPassword: "forgot-password",
	StepResetPassword:  "reset-password",
	StepComplete:       "complete",
}

func (s Step) String() string {
	if int(s) < len(stepNames) {
		return stepNames[s]
	}
	return "unknown"
}

// ParseStep is the inverse of [Step.String].
func ParseStep(name string) (Step, bool) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Violation is a client-side validation failure on a single field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Transition is the router's decision for one submission.
//
// Message is an inline error to render verbatim and Notice is a
// confirmation shown after a terminal step. Violations are set when
// validation rejected the input before any backend call.
type Transition struct {
	From       Step        `json:"from"`
	To         Step        `json:"to"`
	Flow       FlowContext `json:"flow"`
	Result     AuthResult  `json:"result"`
	Message    string      `json:"message,omitempty"`
	Notice     string      `json:"notice,omitempty"`
	Violations []Violation `json:"violations,omitempty"`

	// Token carries the verified code forward to the ResetPassword step.
	Token string `json:"-"`
}

// Advanced reports whether the transition left the current step.
func (t Transition) Advanced() bool {
	return t.From != t.To
}

// Rejected reports whether client-side validation blocked the submission.
func (t Transition) Rejected() bool {
	return len(t.Violations) > 0
}
