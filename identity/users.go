package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/internal/stores"
)

var (
	// ErrRedisUnavailable wraps user-store Redis failures.
	ErrRedisUnavailable = errors.New("identity redis unavailable")

	errUserNotFound  = errors.New("user not found")
	errUserDuplicate = errors.New("user duplicate")
)

type userRecord struct {
	ID           string
	Email        string
	Phone        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    int64
}

func (u *userRecord) user() *authflow.User {
	return &authflow.User{
		ID:        u.ID,
		Email:     u.Email,
		Phone:     u.Phone,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// userStore keeps users as hashes under prefix:user:<id> and maps each
// identifier to an id under prefix:idx:<kind>:<identifier>.
type userStore struct {
	redis  redis.UniversalClient
	prefix string
}

func (s *userStore) userKey(id string) string {
	return s.prefix + ":user:" + id
}

func (s *userStore) indexKey(id authflow.Identifier) string {
	return s.prefix + ":idx:" + string(id.Kind) + ":" + stores.NormalizeIdentifier(id.Value)
}

// lookup returns the user id for identifier or errUserNotFound.
func (s *userStore) lookup(ctx context.Context, id authflow.Identifier) (string, error) {
	userID, err := s.redis.Get(ctx, s.indexKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", errUserNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return userID, nil
}

func (s *userStore) get(ctx context.Context, userID string) (*userRecord, error) {
	fields, err := s.redis.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, errUserNotFound
	}
	created, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	return &userRecord{
		ID:           userID,
		Email:        fields["email"],
		Phone:        fields["phone"],
		FirstName:    fields["first_name"],
		LastName:     fields["last_name"],
		PasswordHash: fields["password_hash"],
		CreatedAt:    created,
	}, nil
}

func (s *userStore) findByIdentifier(ctx context.Context, id authflow.Identifier) (*userRecord, error) {
	userID, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, userID)
}

// create claims the identifier index with SETNX, then writes the record.
// errUserDuplicate is returned when the identifier is already taken.
func (s *userStore) create(ctx context.Context, id authflow.Identifier, rec userRecord, now time.Time) (*userRecord, error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = now.Unix()
	switch id.Kind {
	case authflow.KindEmail:
		rec.Email = id.Value
	case authflow.KindPhone:
		rec.Phone = id.Value
	}

	idx := s.indexKey(id)
	claimed, err := s.redis.SetNX(ctx, idx, rec.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !claimed {
		return nil, errUserDuplicate
	}

	if err := s.redis.HSet(ctx, s.userKey(rec.ID), map[string]any{
		"email":         rec.Email,
		"phone":         rec.Phone,
		"first_name":    rec.FirstName,
		"last_name":     rec.LastName,
		"password_hash": rec.PasswordHash,
		"created_at":    rec.CreatedAt,
	}).Err(); err != nil {
		s.redis.Del(ctx, idx)
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return &rec, nil
}

// update writes only the non-empty fields.
func (s *userStore) update(ctx context.Context, userID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.redis.HSet(ctx, s.userKey(userID), fields).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
