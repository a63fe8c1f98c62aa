package identity

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rentoapp/authflow"
)

// Delivery is one code to hand to the user.
type Delivery struct {
	Identifier authflow.Identifier
	Code       string
	ExpiresIn  time.Duration
}

// Sender delivers one-time codes.
type Sender interface {
	Send(ctx context.Context, d Delivery) error
}

// SenderFunc adapts a function to [Sender].
type SenderFunc func(ctx context.Context, d Delivery) error

func (f SenderFunc) Send(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// LogSender writes codes to a zap logger. Development only.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, d Delivery) error {
	l := s.Logger
	if l == nil {
		l = zap.NewNop()
	}
	l.Info("one-time code issued",
		zap.String("kind", string(d.Identifier.Kind)),
		zap.String("identifier", d.Identifier.Value),
		zap.String("code", d.Code),
		zap.Duration("expires_in", d.ExpiresIn),
	)
	return nil
}

// WriterSender prints one line per code to w, for terminals and demos.
type WriterSender struct {
	mu    sync.Mutex
	w     io.Writer
	title cases.Caser
}

// NewWriterSender returns a sender writing to w.
func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w, title: cases.Title(language.English)}
}

func (s *WriterSender) Send(_ context.Context, d Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s code for %s: %s (expires in %s)\n",
		s.title.String(string(d.Identifier.Kind)), d.Identifier.Value, d.Code, d.ExpiresIn)
	return err
}
