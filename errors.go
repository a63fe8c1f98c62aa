package authflow

import "errors"

var (
	// ErrBackendRequired is returned by Build when no backend was supplied.
	ErrBackendRequired = errors.New("backend required")
	// ErrBuilderUsed is returned when Build is called twice on one builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidIdentifierKind is returned for kinds other than email and phone.
	ErrInvalidIdentifierKind = errors.New("invalid identifier kind")
	// ErrSessionMissing marks an operation that needs a verified session.
	ErrSessionMissing = errors.New("auth session missing")
	// ErrProfileNotFound is returned by profile stores when no record matches.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileExists is returned by profile stores on a duplicate insert.
	ErrProfileExists = errors.New("profile already exists")
	// ErrUnsupportedLanguage is returned for display languages without resources.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrSessionCheckTimeout is reported when the startup session check exceeds its bound.
	ErrSessionCheckTimeout = errors.New("session check timeout")
)

// BackendError is an expected domain failure reported by a backend
// collaborator: wrong credentials, invalid code, duplicate account. Adapters
// surface Message to the user verbatim and treat every other error as a
// transport failure.
type BackendError struct {
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Is matches another *BackendError with the same code, so package-level
// BackendError values work as sentinels.
func (e *BackendError) Is(target error) bool {
	t, ok := target.(*BackendError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// NewBackendError builds a domain failure.
func NewBackendError(code, message string) *BackendError {
	return &BackendError{Code: code, Message: message}
}

// IsDomainError reports whether err wraps a [BackendError].
func IsDomainError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// DomainMessage returns the user-facing message of a wrapped [BackendError].
func DomainMessage(err error) (string, bool) {
	var be *BackendError
	if !errors.As(err, &be) {
		return "", false
	}
	return be.Message, true
}
