package live

import (
	"sync"

	"github.com/rentoapp/authflow"
)

// SessionHolder owns the single session established by VerifyOTP or Login.
// Register and ResetPassword read it as an explicit precondition.
type SessionHolder struct {
	mu      sync.RWMutex
	session *authflow.Session
}

// Set replaces the held session. A nil session is ignored.
func (h *SessionHolder) Set(s *authflow.Session) {
	if s == nil {
		return
	}
	cp := *s
	h.mu.Lock()
	h.session = &cp
	h.mu.Unlock()
}

// Get returns a copy of the held session, or nil.
func (h *SessionHolder) Get() *authflow.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return nil
	}
	cp := *h.session
	return &cp
}

// Clear drops the held session.
func (h *SessionHolder) Clear() {
	h.mu.Lock()
	h.session = nil
	h.mu.Unlock()
}
