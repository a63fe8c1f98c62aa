package session

// Session is one server-side login record. Times are unix seconds.
type Session struct {
	SessionID string
	UserID    string
	Channel   string
	CreatedAt int64
	ExpiresAt int64
}

// Expired reports whether the session has passed its expiry at now.
func (s *Session) Expired(now int64) bool {
	return s.ExpiresAt > 0 && now >= s.ExpiresAt
}
