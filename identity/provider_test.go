package identity

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/live"
	"github.com/rentoapp/authflow/password"
)

type codeBox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeBox) Send(_ context.Context, d Delivery) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[d.Identifier.Value] = d.Code
	return nil
}

func (b *codeBox) code(value string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[value]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.KeyPrefix = "t"
	cfg.Session.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}
	return cfg
}

func newTestProvider(t *testing.T, mutate func(*Config)) (*Provider, *codeBox, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	box := &codeBox{codes: map[string]string{}}
	p, err := New(rdb, cfg, WithSender(box))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p, box, mr
}

func email(v string) authflow.Identifier {
	return authflow.Identifier{Value: v, Kind: authflow.KindEmail}
}

func requireDomain(t *testing.T, err error, code string) {
	t.Helper()
	var be *authflow.BackendError
	if !errors.As(err, &be) || be.Code != code {
		t.Fatalf("expected domain error %q, got %v", code, err)
	}
}

func TestOTPRegistrationThenPasswordLogin(t *testing.T) {
	p, box, _ := newTestProvider(t, nil)
	ctx := context.Background()
	id := email("new@example.com")

	if err := p.SignInWithOTP(ctx, id); err != nil {
		t.Fatalf("send otp: %v", err)
	}
	code := box.code(id.Value)
	if len(code) != authflow.OTPLength {
		t.Fatalf("unexpected code %q", code)
	}

	user, sess, err := p.VerifyOTP(ctx, id, code)
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	if user.ID == "" || sess.AccessToken == "" || sess.UserID != user.ID {
		t.Fatalf("unexpected user %+v session %+v", user, sess)
	}

	updated, err := p.UpdateUser(ctx, sess.AccessToken, live.UserUpdate{Password: "Secret1!", FirstName: "Ada", LastName: "Lovelace"})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.FirstName != "Ada" || updated.Email != id.Value {
		t.Fatalf("unexpected updated user %+v", updated)
	}

	loggedIn, _, err := p.SignInWithPassword(ctx, id, "Secret1!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("login returned user %s, want %s", loggedIn.ID, user.ID)
	}
}

func TestVerifyOTPWrongCodeIsDomainError(t *testing.T) {
	p, box, _ := newTestProvider(t, nil)
	ctx := context.Background()
	id := email("a@example.com")

	if err := p.SignInWithOTP(ctx, id); err != nil {
		t.Fatalf("send otp: %v", err)
	}
	wrong := "0000"
	if box.code(id.Value) == wrong {
		wrong = "1111"
	}
	_, _, err := p.VerifyOTP(ctx, id, wrong)
	requireDomain(t, err, CodeInvalidOTP)

	if _, _, err := p.VerifyOTP(ctx, id, box.code(id.Value)); err != nil {
		t.Fatalf("correct code after one miss: %v", err)
	}
	_, _, err = p.VerifyOTP(ctx, id, box.code(id.Value))
	requireDomain(t, err, CodeInvalidOTP)
}

func TestVerifyOTPExistingUserKeepsIdentity(t *testing.T) {
	p, box, _ := newTestProvider(t, nil)
	ctx := context.Background()
	id := email("known@example.com")

	user, _, err := p.SignUp(ctx, live.SignUpRequest{Identifier: id, Password: "Secret1!", FirstName: "K"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if err := p.SignInWithOTP(ctx, id); err != nil {
		t.Fatalf("send otp: %v", err)
	}
	got, _, err := p.VerifyOTP(ctx, id, box.code(id.Value))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("verify created a second identity: %s != %s", got.ID, user.ID)
	}
}

func TestSignUpDuplicate(t *testing.T) {
	p, _, _ := newTestProvider(t, nil)
	ctx := context.Background()
	req := live.SignUpRequest{Identifier: email("dup@example.com"), Password: "Secret1!"}

	if _, _, err := p.SignUp(ctx, req); err != nil {
		t.Fatalf("first sign up: %v", err)
	}
	_, _, err := p.SignUp(ctx, req)
	requireDomain(t, err, CodeUserExists)
}

func TestSignUpWeakPassword(t *testing.T) {
	p, _, _ := newTestProvider(t, nil)
	_, _, err := p.SignUp(context.Background(), live.SignUpRequest{Identifier: email("w@example.com"), Password: "short"})
	requireDomain(t, err, CodeWeakPassword)
}

func TestLoginLimiter(t *testing.T) {
	p, _, _ := newTestProvider(t, func(c *Config) { c.MaxLoginAttempts = 2 })
	ctx := context.Background()
	id := email("lim@example.com")
	if _, _, err := p.SignUp(ctx, live.SignUpRequest{Identifier: id, Password: "Secret1!"}); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	for i := 0; i < 3; i++ {
		_, _, err := p.SignInWithPassword(ctx, id, "Wrong1!!")
		requireDomain(t, err, CodeInvalidCredentials)
	}
	_, _, err := p.SignInWithPassword(ctx, id, "Secret1!")
	requireDomain(t, err, CodeRateLimited)
}

func TestLoginUnknownUser(t *testing.T) {
	p, _, _ := newTestProvider(t, nil)
	_, _, err := p.SignInWithPassword(context.Background(), email("ghost@example.com"), "Secret1!")
	requireDomain(t, err, CodeInvalidCredentials)
}

func TestOTPSendLimiter(t *testing.T) {
	p, _, _ := newTestProvider(t, func(c *Config) { c.MaxOTPSends = 2 })
	ctx := context.Background()
	id := email("spam@example.com")

	for i := 0; i < 2; i++ {
		if err := p.SignInWithOTP(ctx, id); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	requireDomain(t, p.SignInWithOTP(ctx, id), CodeRateLimited)
}

func TestSignOutInvalidatesToken(t *testing.T) {
	p, _, _ := newTestProvider(t, nil)
	ctx := context.Background()
	_, sess, err := p.SignUp(ctx, live.SignUpRequest{Identifier: email("s@example.com"), Password: "Secret1!"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := p.GetUser(ctx, sess.AccessToken); err != nil {
		t.Fatalf("get user: %v", err)
	}
	if err := p.SignOut(ctx, sess.AccessToken); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	_, err = p.GetUser(ctx, sess.AccessToken)
	requireDomain(t, err, CodeSessionMissing)

	_, err = p.UpdateUser(ctx, "garbage", live.UserUpdate{Password: "Secret1!"})
	requireDomain(t, err, CodeSessionMissing)
}

func TestRedisDownIsTransport(t *testing.T) {
	p, _, mr := newTestProvider(t, nil)
	mr.Close()

	err := p.SignInWithOTP(context.Background(), email("x@example.com"))
	if err == nil || authflow.IsDomainError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(nil, testConfig()); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for nil client, got %v", err)
	}
	cfg := testConfig()
	cfg.Session.PrivateKey = nil
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	if _, err := New(rdb, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing key, got %v", err)
	}
}

func TestWriterSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSender(&buf)
	err := s.Send(context.Background(), Delivery{
		Identifier: authflow.Identifier{Value: "+15550100", Kind: authflow.KindPhone},
		Code:       "4321",
		ExpiresIn:  5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := buf.String(); !strings.HasPrefix(got, "Phone code for +15550100: 4321") {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestLiveBackendOverProvider(t *testing.T) {
	p, box, _ := newTestProvider(t, nil)
	b := live.New(p, newMemProfiles())
	ctx := context.Background()
	id := email("flow@example.com")

	if res, err := b.SendOTP(ctx, id); err != nil || !res.Success {
		t.Fatalf("send otp: %+v %v", res, err)
	}
	if res, err := b.VerifyOTP(ctx, id, box.code(id.Value)); err != nil || !res.Success {
		t.Fatalf("verify otp: %+v %v", res, err)
	}
	res, err := b.Register(ctx, authflow.RegistrationDraft{
		FirstName: "Flo", LastName: "W", Password: "Secret1!", ConfirmPassword: "Secret1!",
		Identifier: id, UserType: authflow.UserTypeLandlord,
	})
	if err != nil || !res.Success || res.ProfileIncomplete {
		t.Fatalf("register: %+v %v", res, err)
	}

	login, err := b.Login(ctx, id, "Secret1!")
	if err != nil || !login.Success {
		t.Fatalf("login: %+v %v", login, err)
	}
	if login.User.UserType != authflow.UserTypeLandlord {
		t.Fatalf("expected profile merged into login user, got %+v", login.User)
	}
}
