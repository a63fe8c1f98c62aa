package identity

import (
	"context"
	"sync"

	"github.com/rentoapp/authflow"
)

type memProfiles struct {
	mu   sync.Mutex
	rows map[string]authflow.Profile
}

func newMemProfiles() *memProfiles {
	return &memProfiles{rows: map[string]authflow.Profile{}}
}

func (m *memProfiles) CheckUserExists(_ context.Context, id authflow.Identifier) (bool, error) {
	_, err := m.FindIDByIdentifier(context.Background(), id)
	return err == nil, nil
}

func (m *memProfiles) FindIDByIdentifier(_ context.Context, id authflow.Identifier) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.Email == id.Value || p.Phone == id.Value {
			return p.ID, nil
		}
	}
	return "", authflow.ErrProfileNotFound
}

func (m *memProfiles) GetProfile(_ context.Context, userID string) (authflow.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID]
	if !ok {
		return authflow.Profile{}, authflow.ErrProfileNotFound
	}
	return p, nil
}

func (m *memProfiles) InsertProfile(_ context.Context, p authflow.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; ok {
		return authflow.ErrProfileExists
	}
	m.rows[p.ID] = p
	return nil
}
