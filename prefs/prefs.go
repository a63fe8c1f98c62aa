// Package prefs keeps device-local preferences in SQLite. The only
// preference the flow reads is the display language.
package prefs

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3/database"
	"golang.org/x/text/language"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/localdb"
)

//go:embed migrations/*.sql
var migrations embed.FS

// LanguageKey is the row holding the display language.
const LanguageKey = "user-language"

// DefaultLanguage applies when nothing has been stored.
var DefaultLanguage = language.English

// Supported lists the languages the app ships with.
var Supported = []language.Tag{language.English, language.Arabic}

var matcher = language.NewMatcher(Supported)

// Store is a key/value table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := localdb.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New migrates db and wraps it.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	if err := localdb.Migrate(ctx, db, database.DialectSQLite3, "prefs_migrations", fsys); err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read preference %s: %w", key, err)
	}
	return v, true, nil
}

// Set upserts key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC())
	if err != nil {
		return fmt.Errorf("write preference %s: %w", key, err)
	}
	return nil
}

// Language returns the stored language, or [DefaultLanguage] when the row
// is missing or no longer supported.
func (s *Store) Language(ctx context.Context) (language.Tag, error) {
	v, ok, err := s.Get(ctx, LanguageKey)
	if err != nil || !ok {
		return DefaultLanguage, err
	}
	tag, err := ParseLanguage(v)
	if err != nil {
		return DefaultLanguage, nil
	}
	return tag, nil
}

// SetLanguage validates and stores the base language of value.
func (s *Store) SetLanguage(ctx context.Context, value string) (language.Tag, error) {
	tag, err := ParseLanguage(value)
	if err != nil {
		return DefaultLanguage, err
	}
	return tag, s.Set(ctx, LanguageKey, tag.String())
}

// ParseLanguage maps value onto one of [Supported]. Regional variants such
// as "ar-EG" resolve to their base language.
func ParseLanguage(value string) (language.Tag, error) {
	tag, err := language.Parse(value)
	if err != nil {
		return language.Und, fmt.Errorf("%w: %q", authflow.ErrUnsupportedLanguage, value)
	}
	_, idx, conf := matcher.Match(tag)
	if conf < language.High {
		return language.Und, fmt.Errorf("%w: %q", authflow.ErrUnsupportedLanguage, value)
	}
	return Supported[idx], nil
}

// IsRTL reports whether tag is written right to left.
func IsRTL(tag language.Tag) bool {
	base, _ := tag.Base()
	arabic, _ := language.Arabic.Base()
	return base == arabic
}
