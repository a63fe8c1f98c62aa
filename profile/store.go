// Package profile stores profile records in SQLite or Postgres and
// implements [live.ProfileStore].
package profile

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3/database"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/live"
	"github.com/rentoapp/authflow/localdb"
)

//go:embed migrations
var migrations embed.FS

const migrationTable = "profile_migrations"

// Dialect names the SQL flavour behind a [Store].
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var _ live.ProfileStore = (*Store)(nil)

// Store is a profile table over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := localdb.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	s := New(db, DialectSQLite)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects through the pgx stdlib driver and migrates.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := New(db, DialectPostgres)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open handle without migrating it.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Migrate applies the embedded schema for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	dir, gooseDialect := "migrations/sqlite", database.DialectSQLite3
	if s.dialect == DialectPostgres {
		dir, gooseDialect = "migrations/postgres", database.DialectPostgres
	}
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	return localdb.Migrate(ctx, s.db, gooseDialect, migrationTable, fsys)
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func column(kind authflow.IdentifierKind) (string, error) {
	switch kind {
	case authflow.KindEmail:
		return "email", nil
	case authflow.KindPhone:
		return "phone", nil
	default:
		return "", authflow.ErrInvalidIdentifierKind
	}
}

func normalize(id authflow.Identifier) string {
	v := strings.TrimSpace(id.Value)
	if id.Kind == authflow.KindEmail {
		v = strings.ToLower(v)
	}
	return v
}

// CheckUserExists calls check_user_exists on Postgres. SQLite has no
// functions, so it runs the same EXISTS query inline.
func (s *Store) CheckUserExists(ctx context.Context, id authflow.Identifier) (bool, error) {
	id = id.Resolved()

	var exists bool
	if s.dialect == DialectPostgres {
		err := s.db.QueryRowContext(ctx, "SELECT check_user_exists($1, $2)", id.Value, string(id.Kind)).Scan(&exists)
		return exists, err
	}

	col, err := column(id.Kind)
	if err != nil {
		return false, err
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM profiles WHERE "+col+" = ?)", normalize(id)).Scan(&exists)
	return exists, err
}

// FindIDByIdentifier reads the profile id directly.
func (s *Store) FindIDByIdentifier(ctx context.Context, id authflow.Identifier) (string, error) {
	id = id.Resolved()
	col, err := column(id.Kind)
	if err != nil {
		return "", err
	}

	var userID string
	err = s.db.QueryRowContext(ctx,
		s.rebind("SELECT id FROM profiles WHERE "+col+" = ? LIMIT 1"), normalize(id)).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", authflow.ErrProfileNotFound
	}
	return userID, err
}

// GetProfile loads one record.
func (s *Store) GetProfile(ctx context.Context, userID string) (authflow.Profile, error) {
	var (
		p            authflow.Profile
		email, phone sql.NullString
		userType     string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		"SELECT id, email, phone, first_name, last_name, user_type, created_at FROM profiles WHERE id = ?"),
		userID,
	).Scan(&p.ID, &email, &phone, &p.FirstName, &p.LastName, &userType, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authflow.Profile{}, authflow.ErrProfileNotFound
	}
	if err != nil {
		return authflow.Profile{}, err
	}
	p.Email = email.String
	p.Phone = phone.String
	p.UserType = authflow.UserType(userType)
	return p, nil
}

// InsertProfile writes p. A duplicate id or identifier returns
// authflow.ErrProfileExists.
func (s *Store) InsertProfile(ctx context.Context, p authflow.Profile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if !p.UserType.Valid() {
		p.UserType = authflow.UserTypeTenant
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		"INSERT INTO profiles (id, email, phone, first_name, last_name, user_type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"),
		p.ID,
		nullable(strings.ToLower(strings.TrimSpace(p.Email))),
		nullable(strings.TrimSpace(p.Phone)),
		p.FirstName,
		p.LastName,
		string(p.UserType),
		p.CreatedAt,
	)
	if isDuplicate(err) {
		return fmt.Errorf("%w: %s", authflow.ErrProfileExists, p.ID)
	}
	return err
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
