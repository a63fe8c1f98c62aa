package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rentoapp/authflow"
	"github.com/rentoapp/authflow/identity"
	"github.com/rentoapp/authflow/live"
)

const seedPassword = "Loadtest#2024"

type account struct {
	id    authflow.Identifier
	token string
}

// codeBook keeps the last code delivered to each identifier.
type codeBook struct {
	codes sync.Map
}

func (b *codeBook) Send(_ context.Context, d identity.Delivery) error {
	b.codes.Store(d.Identifier.Value, d.Code)
	return nil
}

func (b *codeBook) code(value string) string {
	v, _ := b.codes.Load(value)
	s, _ := v.(string)
	return s
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "afload", "identity key prefix")
		hashMemory  = flag.Uint("hash-memory", 8*1024, "argon2 memory in KiB for seeded passwords")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	client, stopRedis, err := connect(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer stopRedis()

	cfg := identity.DefaultConfig()
	cfg.KeyPrefix = *prefix
	cfg.Password.Memory = uint32(*hashMemory)
	cfg.Password.Time = 1
	// Every op in the OTP phase uses a fresh identifier, but logins hammer
	// the seeded set.
	cfg.MaxLoginAttempts = *ops
	cfg.Session.PrivateKey = make([]byte, 32)
	if _, err := rand.Read(cfg.Session.PrivateKey); err != nil {
		fmt.Fprintf(os.Stderr, "session key: %v\n", err)
		os.Exit(1)
	}

	book := &codeBook{}
	idp, err := identity.New(client, cfg, identity.WithSender(book))
	if err != nil {
		fmt.Fprintf(os.Stderr, "identity setup failed: %v\n", err)
		os.Exit(1)
	}

	accounts := make([]account, *users)
	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	for i := 0; i < *users; i++ {
		id := authflow.Identifier{Value: fmt.Sprintf("user-%d@load.test", i), Kind: authflow.KindEmail}
		_, sess, err := idp.SignUp(ctx, live.SignUpRequest{Identifier: id, Password: seedPassword})
		if err != nil {
			fmt.Fprintf(os.Stderr, "signup failed: %v\n", err)
			os.Exit(1)
		}
		accounts[i] = account{id: id, token: sess.AccessToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	sessionStats := runPhase(*ops, *concurrency, func(r *mrand.Rand, _ int) error {
		_, err := idp.GetUser(ctx, accounts[r.Intn(len(accounts))].token)
		return err
	})
	loginStats := runPhase(*ops, *concurrency, func(r *mrand.Rand, _ int) error {
		_, _, err := idp.SignInWithPassword(ctx, accounts[r.Intn(len(accounts))].id, seedPassword)
		return err
	})
	otpStats := runPhase(*ops, *concurrency, func(_ *mrand.Rand, i int) error {
		id := authflow.Identifier{Value: fmt.Sprintf("+1555%07d", i), Kind: authflow.KindPhone}
		if err := idp.SignInWithOTP(ctx, id); err != nil {
			return err
		}
		_, _, err := idp.VerifyOTP(ctx, id, book.code(id.Value))
		return err
	})

	fmt.Println("---- results ----")
	sessionStats.print("session")
	loginStats.print("login")
	otpStats.print("otp")
}

// connect dials addr, or starts an in-process miniredis when addr is empty.
func connect(addr string) (redis.UniversalClient, func(), error) {
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		if mr, err = miniredis.Run(); err != nil {
			return nil, nil, err
		}
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	return client, func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}, nil
}

// runPhase spreads ops calls of fn over concurrency workers. fn receives a
// per-worker source and the op index.
func runPhase(ops, concurrency int, fn func(r *mrand.Rand, i int) error) phaseStats {
	var (
		wg       sync.WaitGroup
		next     atomic.Int64
		failures atomic.Int64
	)
	perWorker := make([][]time.Duration, concurrency)

	start := time.Now()
	for w := range perWorker {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(start.UnixNano() ^ int64(w+1)*7919))
			for i := int(next.Add(1)) - 1; i < ops; i = int(next.Add(1)) - 1 {
				began := time.Now()
				if fn(r, i) != nil {
					failures.Add(1)
				}
				perWorker[w] = append(perWorker[w], time.Since(began))
			}
		}()
	}
	wg.Wait()

	return newPhaseStats(time.Since(start), slices.Concat(perWorker...), failures.Load())
}

type phaseStats struct {
	elapsed  time.Duration
	samples  []time.Duration
	failures int64
}

func newPhaseStats(elapsed time.Duration, samples []time.Duration, failures int64) phaseStats {
	slices.Sort(samples)
	return phaseStats{elapsed: elapsed, samples: samples, failures: failures}
}

// quantile returns the nearest-rank sample at q in [0, 1].
func (s phaseStats) quantile(q float64) time.Duration {
	if len(s.samples) == 0 {
		return 0
	}
	q = min(max(q, 0), 1)
	return s.samples[int(q*float64(len(s.samples)-1))]
}

func (s phaseStats) throughput() float64 {
	if s.elapsed <= 0 {
		return 0
	}
	return float64(len(s.samples)) / s.elapsed.Seconds()
}

func (s phaseStats) print(name string) {
	fmt.Printf("%-8s ops=%d failures=%d elapsed=%s rate=%.0f/s p50=%s p95=%s p99=%s\n",
		name, len(s.samples), s.failures, s.elapsed.Round(time.Millisecond), s.throughput(),
		s.quantile(0.50).Round(time.Microsecond),
		s.quantile(0.95).Round(time.Microsecond),
		s.quantile(0.99).Round(time.Microsecond),
	)
}
