package authflow

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// OTPLength is the number of characters a code must have before it is submitted.
	OTPLength = 4

	minPasswordLength = 8
	minNameLength     = 2
	minPhoneLength    = 8
)

var (
	digitPattern   = regexp.MustCompile(`[0-9]`)
	specialPattern = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// ClassifyIdentifier derives a kind from the presence of '@'. It is a
// heuristic, not validation: malformed input is still classified.
func ClassifyIdentifier(value string) IdentifierKind {
	if strings.Contains(value, "@") {
		return KindEmail
	}
	return KindPhone
}

// ValidateIdentifier checks an Entry submission for its declared kind.
func ValidateIdentifier(value string, kind IdentifierKind) []Violation {
	value = strings.TrimSpace(value)
	switch kind {
	case KindEmail:
		if !isEmail(value) {
			return []Violation{{Field: "identifier", Message: MsgInvalidEmail}}
		}
	case KindPhone:
		if utf8.RuneCountInString(value) < minPhoneLength {
			return []Violation{{Field: "identifier", Message: MsgPhoneTooShort}}
		}
	default:
		return []Violation{{Field: "method", Message: MsgRequired}}
	}
	return nil
}

func isEmail(value string) bool {
	if value == "" || strings.ContainsAny(value, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}
	at := strings.LastIndexByte(value, '@')
	return at > 0 && strings.Contains(value[at+1:], ".")
}

// ValidatePassword applies the registration password rules. Each rule is
// reported independently so callers can show all of them at once.
func ValidatePassword(password, confirm string) []Violation {
	var out []Violation
	if utf8.RuneCountInString(password) < minPasswordLength {
		out = append(out, Violation{Field: "password", Message: MsgPasswordShort})
	}
	if !digitPattern.MatchString(password) {
		out = append(out, Violation{Field: "password", Message: MsgPasswordNumber})
	}
	if !specialPattern.MatchString(password) {
		out = append(out, Violation{Field: "password", Message: MsgPasswordSpecial})
	}
	if password != confirm {
		out = append(out, Violation{Field: "confirm_password", Message: MsgPasswordMismatch})
	}
	return out
}

// ValidateRegistration checks names and password rules of a draft.
func ValidateRegistration(draft RegistrationDraft) []Violation {
	var out []Violation
	if utf8.RuneCountInString(strings.TrimSpace(draft.FirstName)) < minNameLength {
		out = append(out, Violation{Field: "first_name", Message: MsgFirstNameRequired})
	}
	if utf8.RuneCountInString(strings.TrimSpace(draft.LastName)) < minNameLength {
		out = append(out, Violation{Field: "last_name", Message: MsgLastNameRequired})
	}
	return append(out, ValidatePassword(draft.Password, draft.ConfirmPassword)...)
}

// ValidateNewPassword checks the ResetPassword step. It stops at the first
// failing rule, matching the order required, match, length.
func ValidateNewPassword(password, confirm string) []Violation {
	switch {
	case password == "" || confirm == "":
		return []Violation{{Field: "password", Message: MsgRequired}}
	case password != confirm:
		return []Violation{{Field: "confirm_password", Message: MsgPasswordMismatch}}
	case utf8.RuneCountInString(password) < minPasswordLength:
		return []Violation{{Field: "password", Message: MsgPasswordShort}}
	}
	return nil
}

// CodeReady reports whether code has the fixed OTP length and may be submitted.
func CodeReady(code string) bool {
	return utf8.RuneCountInString(code) == OTPLength
}
