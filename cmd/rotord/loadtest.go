package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	goRotate "github.com/MrEthical07/goRotate"
	"github.com/MrEthical07/goRotate/refresh"
	"github.com/MrEthical07/goRotate/refresh/redisstore"
)

type loadtestOptions struct {
	users       int
	concurrency int
	ops         int
	racers      int
	races       int
	redisAddr   string
	prefix      string
	memory      bool
}

type tokenState struct {
	userID  string
	access  string
	refresh string
	mu      sync.Mutex
}

func newLoadtestCommand() *cobra.Command {
	var opts loadtestOptions

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure validate and refresh latency and check single-winner rotation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.racers <= 1 || opts.races < 0 {
				return errors.New("users, concurrency and ops must be > 0 and racers > 1")
			}
			if opts.redisAddr == "" {
				opts.redisAddr = os.Getenv("REDIS_ADDR")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.users, "users", 10000, "Number of principals to log in")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 256, "Number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 100000, "Operations per phase")
	cmd.Flags().IntVar(&opts.racers, "racers", 16, "Concurrent presenters of the same refresh token")
	cmd.Flags().IntVar(&opts.races, "races", 200, "Number of single-winner races to run")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "Redis address; REDIS_ADDR or miniredis when empty")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "rt-load", "Redis key prefix")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "Use the in-process store instead of redis")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	store, cleanup, err := loadtestStore(out, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := goRotate.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("loadtest-access-secret")
	cfg.JWT.RefreshSecret = []byte("loadtest-refresh-secret")
	engine, err := goRotate.New().
		WithConfig(cfg).
		WithRefreshStore(store).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	states := make([]tokenState, opts.users)
	fmt.Fprintf(out, "logging in %d principals...\n", opts.users)
	startSeed := time.Now()
	for i := range states {
		id := fmt.Sprintf("user-%d", i)
		pair, err := engine.Login(ctx, goRotate.Principal{ID: id, Email: id + "@load.test"})
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		states[i] = tokenState{userID: id, access: pair.AccessToken, refresh: pair.RefreshToken}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand) error {
		_, err := engine.ValidateAccess(ctx, states[r.Intn(len(states))].access)
		return err
	})
	refreshStats := runPhase(opts.ops, opts.concurrency, func(r *rand.Rand) error {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		defer state.mu.Unlock()
		pair, err := engine.Refresh(ctx, state.refresh)
		if err != nil {
			return err
		}
		state.access, state.refresh = pair.AccessToken, pair.RefreshToken
		return nil
	})
	violations, err := runRaces(ctx, engine, states, opts.races, opts.racers)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validateStats)
	printStats(out, "refresh", refreshStats)
	snap := engine.MetricsSnapshot()
	fmt.Fprintf(out, "races: %d racers=%d violations=%d reuse_detected=%d race_lost=%d\n",
		opts.races, opts.racers, violations,
		snap.Counters[goRotate.MetricRefreshReuseDetected],
		snap.Counters[goRotate.MetricRefreshRaceLost])

	if violations > 0 {
		return fmt.Errorf("%d races produced other than exactly one winner", violations)
	}
	return nil
}

func loadtestStore(out io.Writer, opts loadtestOptions) (refresh.Store, func(), error) {
	if opts.memory {
		fmt.Fprintln(out, "using in-process store")
		return refresh.NewMemoryStore(), func() {}, nil
	}

	addr := opts.redisAddr
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	cleanup := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}
	return redisstore.New(client, opts.prefix), cleanup, nil
}

// runRaces presents one refresh token from racers goroutines at once and
// counts races that did not end with exactly one success.
func runRaces(ctx context.Context, engine *goRotate.Engine, states []tokenState, races, racers int) (int, error) {
	violations := 0
	for i := 0; i < races; i++ {
		state := &states[i%len(states)]

		var (
			wg      sync.WaitGroup
			winners int64
			start   = make(chan struct{})
			winner  *goRotate.TokenPair
			mu      sync.Mutex
		)
		for j := 0; j < racers; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				pair, err := engine.Refresh(ctx, state.refresh)
				if err == nil {
					atomic.AddInt64(&winners, 1)
					mu.Lock()
					winner = pair
					mu.Unlock()
				}
			}()
		}
		close(start)
		wg.Wait()

		if winners != 1 {
			violations++
		}
		if winner == nil {
			return violations, fmt.Errorf("race %d for %s produced no winner", i, state.userID)
		}
		state.access, state.refresh = winner.AccessToken, winner.RefreshToken
	}
	return violations, nil
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

// percentile expects samples sorted ascending.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
