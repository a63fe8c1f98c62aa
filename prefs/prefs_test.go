package prefs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/text/language"

	"github.com/rentoapp/authflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("open prefs: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLanguageDefaultsToEnglish(t *testing.T) {
	s := newTestStore(t)
	tag, err := s.Language(context.Background())
	if err != nil {
		t.Fatalf("language: %v", err)
	}
	if tag != language.English || IsRTL(tag) {
		t.Fatalf("default = %v", tag)
	}
}

func TestSetLanguagePersists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetLanguage(ctx, "ar"); err != nil {
		t.Fatalf("set: %v", err)
	}
	tag, err := s.Language(ctx)
	if err != nil {
		t.Fatalf("language: %v", err)
	}
	if tag != language.Arabic || !IsRTL(tag) {
		t.Fatalf("stored = %v", tag)
	}

	raw, ok, err := s.Get(ctx, LanguageKey)
	if err != nil || !ok || raw != "ar" {
		t.Fatalf("raw row = %q %v %v", raw, ok, err)
	}
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want language.Tag
		err  bool
	}{
		{in: "en", want: language.English},
		{in: "en-GB", want: language.English},
		{in: "ar-EG", want: language.Arabic},
		{in: "fr", err: true},
		{in: "not a tag", err: true},
	}
	for _, tt := range tests {
		got, err := ParseLanguage(tt.in)
		if tt.err {
			if !errors.Is(err, authflow.ErrUnsupportedLanguage) {
				t.Fatalf("ParseLanguage(%q) err = %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseLanguage(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestUnsupportedStoredValueFallsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Set(ctx, LanguageKey, "de"); err != nil {
		t.Fatalf("set: %v", err)
	}
	tag, err := s.Language(ctx)
	if err != nil || tag != language.English {
		t.Fatalf("language = %v, %v", tag, err)
	}
}
