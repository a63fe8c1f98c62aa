package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rentoapp/authflow"
)

// Backend modes.
const (
	BackendMock = "mock"
	BackendLive = "live"
)

// Audit sink kinds.
const (
	AuditNone   = "none"
	AuditStderr = "stderr"
	AuditKafka  = "kafka"
)

// Settings is everything the CLI wires together. Load order is defaults,
// YAML file, .env file, AUTHFLOW_* environment, then command-line flags.
type Settings struct {
	Env     string `yaml:"env"`
	Backend string `yaml:"backend"`
	Verbose bool   `yaml:"verbose"`

	MockInstant bool `yaml:"mock_instant"`

	// RedisAddr is the identity store. Empty runs an embedded miniredis.
	RedisAddr     string `yaml:"redis_addr"`
	SessionKey    string `yaml:"session_key"`
	ProfileDriver string `yaml:"profile_driver"`
	ProfileDSN    string `yaml:"profile_dsn"`
	PrefsPath     string `yaml:"prefs_path"`

	SplashMinDelay      time.Duration `yaml:"splash_min_delay"`
	SessionCheckTimeout time.Duration `yaml:"session_check_timeout"`

	Audit        string   `yaml:"audit"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	Metrics bool `yaml:"metrics"`
}

// DefaultSettings runs the mock backend with production flow timings.
func DefaultSettings() Settings {
	flow := authflow.DefaultConfig().Flow
	return Settings{
		Env:                 "production",
		Backend:             BackendMock,
		ProfileDriver:       "sqlite",
		ProfileDSN:          "authflow-profiles.db",
		PrefsPath:           "authflow-prefs.db",
		SplashMinDelay:      flow.SplashMinDelay,
		SessionCheckTimeout: flow.SessionCheckTimeout,
		Audit:               AuditNone,
		Metrics:             true,
	}
}

// LoadSettings applies the file, .env and environment layers over the
// defaults. A missing configPath is an error; a missing envFile is not.
func LoadSettings(configPath, envFile string) (Settings, error) {
	s := DefaultSettings()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return s, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return s, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := s.applyEnv(os.Getenv); err != nil {
		return s, err
	}
	return s, nil
}

func (s *Settings) applyEnv(getenv func(string) string) error {
	s.Env = getEnv(getenv, "AUTHFLOW_ENV", s.Env)
	s.Backend = getEnv(getenv, "AUTHFLOW_BACKEND", s.Backend)
	s.RedisAddr = getEnv(getenv, "AUTHFLOW_REDIS_ADDR", s.RedisAddr)
	s.SessionKey = getEnv(getenv, "AUTHFLOW_SESSION_KEY", s.SessionKey)
	s.ProfileDriver = getEnv(getenv, "AUTHFLOW_PROFILE_DRIVER", s.ProfileDriver)
	s.ProfileDSN = getEnv(getenv, "AUTHFLOW_PROFILE_DSN", s.ProfileDSN)
	s.PrefsPath = getEnv(getenv, "AUTHFLOW_PREFS_PATH", s.PrefsPath)
	s.Audit = getEnv(getenv, "AUTHFLOW_AUDIT", s.Audit)
	s.KafkaTopic = getEnv(getenv, "AUTHFLOW_KAFKA_TOPIC", s.KafkaTopic)
	s.KafkaBrokers = getList(getenv, "AUTHFLOW_KAFKA_BROKERS", s.KafkaBrokers)

	var err error
	if s.Verbose, err = getBool(getenv, "AUTHFLOW_VERBOSE", s.Verbose); err != nil {
		return err
	}
	if s.MockInstant, err = getBool(getenv, "AUTHFLOW_MOCK_INSTANT", s.MockInstant); err != nil {
		return err
	}
	if s.Metrics, err = getBool(getenv, "AUTHFLOW_METRICS", s.Metrics); err != nil {
		return err
	}
	if s.SplashMinDelay, err = getDuration(getenv, "AUTHFLOW_SPLASH_MIN_DELAY", s.SplashMinDelay); err != nil {
		return err
	}
	if s.SessionCheckTimeout, err = getDuration(getenv, "AUTHFLOW_SESSION_CHECK_TIMEOUT", s.SessionCheckTimeout); err != nil {
		return err
	}
	return nil
}

// Validate checks enumerated fields and cross-field requirements.
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendMock, BackendLive:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendMock, BackendLive, s.Backend)
	}
	switch s.Audit {
	case AuditNone, AuditStderr:
	case AuditKafka:
		if len(s.KafkaBrokers) == 0 {
			return errors.New("audit kafka requires kafka_brokers")
		}
	default:
		return fmt.Errorf("unknown audit sink %q", s.Audit)
	}
	if s.Backend == BackendLive {
		switch s.ProfileDriver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("profile_driver must be sqlite or postgres, got %q", s.ProfileDriver)
		}
		switch {
		case s.EphemeralProfiles() && s.ProfileDriver == "postgres":
			return errors.New("profile_driver postgres needs redis_addr: identities in embedded redis do not survive a restart")
		case !s.EphemeralProfiles() && s.ProfileDSN == "":
			return errors.New("profile_dsn must be set for the live backend")
		}
	}
	cfg := s.FlowConfig()
	return cfg.Validate()
}

// EphemeralProfiles reports whether the live profile store is scoped to the
// process. Identities in an embedded Redis vanish on exit, so profile rows
// kept on disk would point at accounts that no longer exist.
func (s Settings) EphemeralProfiles() bool {
	return s.Backend == BackendLive && s.RedisAddr == ""
}

// Development reports whether human-readable logging is wanted.
func (s Settings) Development() bool {
	return s.Verbose || s.Env == "development"
}

// FlowConfig converts the settings into the library configuration.
func (s Settings) FlowConfig() authflow.Config {
	cfg := authflow.DefaultConfig()
	cfg.Flow.SplashMinDelay = s.SplashMinDelay
	cfg.Flow.SessionCheckTimeout = s.SessionCheckTimeout
	cfg.Audit.Enabled = s.Audit != AuditNone
	cfg.Metrics.Enabled = s.Metrics
	cfg.Metrics.EnableLatencyHistograms = s.Metrics
	return cfg
}

func getEnv(getenv func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(getenv func(string) string, key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getDuration(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getList(getenv func(string) string, key string, fallback []string) []string {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
