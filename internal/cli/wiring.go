package cli

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/auditsink/kafka"
	"github.com/rentoapp/authflow/identity"
	"github.com/rentoapp/authflow/live"
	"github.com/rentoapp/authflow/mock"
	"github.com/rentoapp/authflow/prefs"
	"github.com/rentoapp/authflow/profile"
)

// App is a wired flow plus everything that must be closed with it.
type App struct {
	Settings Settings
	Logger   *zap.Logger
	Flow     *authflow.Flow
	Backend  authflow.Backend

	closers []func() error
}

// NewLogger returns a development logger for verbose or development runs
// and a production logger otherwise.
func NewLogger(s Settings) (*zap.Logger, error) {
	if s.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Wire builds the backend selected by s and a flow over it. Codes issued
// by the live identity service are printed to codeOut and stderr-audit
// events are written to auditOut.
func Wire(ctx context.Context, s Settings, logger *zap.Logger, codeOut, auditOut io.Writer) (*App, error) {
	if err := s.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid settings", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Settings: s, Logger: logger}

	backend, err := app.backend(ctx, codeOut)
	if err != nil {
		app.Close()
		return nil, WrapExitError(ExitCommandError, "backend setup failed", err)
	}
	app.Backend = backend

	sink, err := app.auditSink(auditOut)
	if err != nil {
		app.Close()
		return nil, WrapExitError(ExitCommandError, "audit setup failed", err)
	}

	b := authflow.New().
		WithConfig(s.FlowConfig()).
		WithBackend(backend).
		WithLogger(logger)
	if sink != nil {
		b = b.WithAuditSink(sink)
	}
	flow, err := b.Build()
	if err != nil {
		app.Close()
		return nil, WrapExitError(ExitCommandError, "flow setup failed", err)
	}
	app.Flow = flow
	return app, nil
}

func (a *App) backend(ctx context.Context, codeOut io.Writer) (authflow.Backend, error) {
	if a.Settings.Backend == BackendMock {
		delays := mock.DefaultDelays()
		if a.Settings.MockInstant {
			delays = mock.NoDelays()
		}
		return mock.New(delays, a.Logger), nil
	}

	rdb, err := a.redis(ctx)
	if err != nil {
		return nil, err
	}

	cfg := identity.DefaultConfig()
	cfg.Session.PrivateKey = []byte(a.Settings.SessionKey)
	if len(cfg.Session.PrivateKey) == 0 {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		cfg.Session.PrivateKey = key
		a.Logger.Warn("no session_key configured, sessions end with this process")
	}
	idp, err := identity.New(rdb, cfg,
		identity.WithSender(identity.NewWriterSender(codeOut)),
		identity.WithLogger(a.Logger),
	)
	if err != nil {
		return nil, err
	}

	profiles, err := a.profiles(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, profiles.Close)

	return live.New(idp, profiles, live.WithLogger(a.Logger)), nil
}

// profiles opens the configured profile store. With embedded Redis the
// SQLite database goes to a temporary directory removed on Close.
func (a *App) profiles(ctx context.Context) (*profile.Store, error) {
	if a.Settings.ProfileDriver == "postgres" {
		return profile.OpenPostgres(ctx, a.Settings.ProfileDSN)
	}
	dsn := a.Settings.ProfileDSN
	if a.Settings.EphemeralProfiles() {
		dir, err := os.MkdirTemp("", "authflow-profiles")
		if err != nil {
			return nil, fmt.Errorf("profile temp dir: %w", err)
		}
		a.closers = append(a.closers, func() error { return os.RemoveAll(dir) })
		dsn = filepath.Join(dir, "profiles.db")
		a.Logger.Warn("embedded redis: profiles are kept for this run only",
			zap.String("ignored_dsn", a.Settings.ProfileDSN),
			zap.String("path", dsn),
		)
	}
	return profile.OpenSQLite(ctx, dsn)
}

func (a *App) redis(ctx context.Context) (redis.UniversalClient, error) {
	addr := a.Settings.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		a.closers = append(a.closers, func() error { mr.Close(); return nil })
		addr = mr.Addr()
		a.Logger.Info("using embedded redis", zap.String("addr", addr))
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	a.closers = append(a.closers, rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return rdb, nil
}

func (a *App) auditSink(out io.Writer) (authflow.AuditSink, error) {
	switch a.Settings.Audit {
	case AuditStderr:
		return authflow.NewJSONWriterSink(out), nil
	case AuditKafka:
		sink, err := kafka.Dial(kafka.Config{Brokers: a.Settings.KafkaBrokers, Topic: a.Settings.KafkaTopic}, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sink.Close)
		return sink, nil
	default:
		return nil, nil
	}
}

// OpenPrefs opens the preference database named by s.
func OpenPrefs(ctx context.Context, s Settings) (*prefs.Store, error) {
	if s.PrefsPath == "" {
		return nil, errors.New("prefs_path is not set")
	}
	return prefs.Open(ctx, s.PrefsPath)
}

// Close flushes the flow, then closes dependencies in reverse order.
func (a *App) Close() error {
	if a.Flow != nil {
		a.Flow.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
