package authflow

import "testing"

func TestClassifyIdentifier(t *testing.T) {
	if ClassifyIdentifier("a@b.co") != KindEmail {
		t.Fatalf("expected email")
	}
	if ClassifyIdentifier("+15550100") != KindPhone {
		t.Fatalf("expected phone")
	}
	if ClassifyIdentifier("@") != KindEmail {
		t.Fatalf("expected heuristic to classify malformed input as email")
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		value string
		kind  IdentifierKind
		want  string
	}{
		{name: "valid email", value: "ada@example.com", kind: KindEmail},
		{name: "email without domain dot", value: "ada@localhost", kind: KindEmail, want: MsgInvalidEmail},
		{name: "email with display name", value: "Ada <ada@example.com>", kind: KindEmail, want: MsgInvalidEmail},
		{name: "empty email", value: "", kind: KindEmail, want: MsgInvalidEmail},
		{name: "phone eight chars", value: "12345678", kind: KindPhone},
		{name: "phone seven chars", value: "1234567", kind: KindPhone, want: MsgPhoneTooShort},
		{name: "phone not checked for digits", value: "abcdefgh", kind: KindPhone},
		{name: "no kind", value: "ada@example.com", kind: KindUnknown, want: MsgRequired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := ValidateIdentifier(tc.value, tc.kind)
			if tc.want == "" {
				if len(v) != 0 {
					t.Fatalf("expected valid, got %+v", v)
				}
				return
			}
			if len(v) != 1 || v[0].Message != tc.want {
				t.Fatalf("expected %q, got %+v", tc.want, v)
			}
		})
	}
}

func TestValidatePasswordReportsEachRule(t *testing.T) {
	if v := ValidatePassword("abcdef1!", "abcdef1!"); len(v) != 0 {
		t.Fatalf("expected valid, got %+v", v)
	}

	v := ValidatePassword("abc", "xyz")
	want := []string{MsgPasswordShort, MsgPasswordNumber, MsgPasswordSpecial, MsgPasswordMismatch}
	if len(v) != len(want) {
		t.Fatalf("expected %d violations, got %+v", len(want), v)
	}
	for i, msg := range want {
		if v[i].Message != msg {
			t.Fatalf("violation %d: expected %q got %q", i, msg, v[i].Message)
		}
	}
}

func TestValidateRegistrationNames(t *testing.T) {
	v := ValidateRegistration(RegistrationDraft{
		FirstName:       " A ",
		LastName:        "",
		Password:        "abcdef1!",
		ConfirmPassword: "abcdef1!",
	})
	if len(v) != 2 || v[0].Message != MsgFirstNameRequired || v[1].Message != MsgLastNameRequired {
		t.Fatalf("unexpected violations %+v", v)
	}
}

func TestCodeReady(t *testing.T) {
	for code, want := range map[string]bool{"": false, "123": false, "1234": true, "12345": false, "abcd": true} {
		if got := CodeReady(code); got != want {
			t.Fatalf("CodeReady(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestMaskIdentifier(t *testing.T) {
	tests := map[string]string{
		"ada@example.com": "ad*@example.com",
		"a@b.co":          "*@b.co",
		"5550100200":      "******0200",
		"123":             "***",
	}
	for in, want := range tests {
		if got := maskIdentifier(Identifier{Value: in}); got != want {
			t.Fatalf("maskIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}
