//go:build integration
// +build integration

package test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/identity"
	"github.com/rentoapp/authflow/live"
	"github.com/rentoapp/authflow/profile"
)

const strongPassword = "Secret#123"

// inbox records the last code delivered per identifier.
type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *inbox) Send(_ context.Context, d identity.Delivery) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.codes == nil {
		b.codes = make(map[string]string)
	}
	b.codes[d.Identifier.Value] = d.Code
	return nil
}

func (b *inbox) last(value string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[value]
}

type stack struct {
	mr       *miniredis.Miniredis
	idp      *identity.Provider
	profiles *profile.Store
	backend  *live.Backend
	flow     *authflow.Flow
	inbox    *inbox
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := identity.DefaultConfig()
	cfg.Session.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	box := &inbox{}
	idp, err := identity.New(rdb, cfg, identity.WithSender(box))
	if err != nil {
		t.Fatalf("identity.New failed: %v", err)
	}

	profiles, err := profile.OpenSQLite(ctx, filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}

	backend := live.New(idp, profiles)
	s := &stack{mr: mr, idp: idp, profiles: profiles, backend: backend, inbox: box}
	s.flow = buildFlow(t, backend)

	t.Cleanup(func() {
		_ = profiles.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return s
}

func buildFlow(t *testing.T, backend authflow.Backend) *authflow.Flow {
	t.Helper()
	cfg := authflow.DefaultConfig()
	cfg.Flow.SplashMinDelay = 0
	flow, err := authflow.New().WithConfig(cfg).WithBackend(backend).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(flow.Close)
	return flow
}

func expectStep(t *testing.T, tr authflow.Transition, want authflow.Step) {
	t.Helper()
	if tr.To != want {
		t.Fatalf("expected %s, got %s (message %q, violations %v)", want, tr.To, tr.Message, tr.Violations)
	}
}
