package counter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"portal/internal/ratelimit/models"
	"portal/pkg/platform/circuit"
)

// CounterStoreSuite runs the same contract against every backend.
type CounterStoreSuite struct {
	suite.Suite
	ctx      context.Context
	newStore func() (Store, func(time.Duration))
	store    Store
	advance  func(time.Duration)
}

func (s *CounterStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store, s.advance = s.newStore()
}

func TestInMemoryCounterStore(t *testing.T) {
	suite.Run(t, &CounterStoreSuite{newStore: func() (Store, func(time.Duration)) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		st := NewInMemoryWithClock(func() time.Time { return now })
		return st, func(d time.Duration) { now = now.Add(d) }
	}})
}

func TestRedisCounterStore(t *testing.T) {
	suite.Run(t, &CounterStoreSuite{newStore: func() (Store, func(time.Duration)) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return NewRedis(client), mr.FastForward
	}})
}

func (s *CounterStoreSuite) TestIncrementWithinWindow() {
	key := models.NewKey(models.ActionLogin, "alice@example.com")

	c, err := s.store.Increment(s.ctx, key, time.Minute)
	s.Require().NoError(err)
	s.Equal(1, c.Count)
	s.Greater(c.TTL, time.Duration(0))

	c, err = s.store.Increment(s.ctx, key, time.Minute)
	s.Require().NoError(err)
	s.Equal(2, c.Count)

	got, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(2, got.Count)
}

func (s *CounterStoreSuite) TestWindowExpires() {
	key := models.NewKey(models.ActionLogin, "bob@example.com")
	_, err := s.store.Increment(s.ctx, key, time.Minute)
	s.Require().NoError(err)

	s.advance(time.Minute + time.Second)

	got, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(0, got.Count)

	c, err := s.store.Increment(s.ctx, key, time.Minute)
	s.Require().NoError(err)
	s.Equal(1, c.Count)
}

func (s *CounterStoreSuite) TestReset() {
	key := models.NewKey(models.ActionRequest, "203.0.113.1")
	_, err := s.store.Increment(s.ctx, key, time.Minute)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Reset(s.ctx, key))

	got, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal(0, got.Count)
}

func (s *CounterStoreSuite) TestUnknownKeyIsZero() {
	got, err := s.store.Get(s.ctx, models.NewKey(models.ActionLogin, "nobody"))
	s.Require().NoError(err)
	s.Equal(models.Counter{}, got)
}

type failingStore struct{ err error }

func (f failingStore) Increment(context.Context, models.Key, time.Duration) (models.Counter, error) {
	return models.Counter{}, f.err
}
func (f failingStore) Get(context.Context, models.Key) (models.Counter, error) {
	return models.Counter{}, f.err
}
func (f failingStore) Reset(context.Context, models.Key) error { return f.err }

func TestResilient_FallsBackWhenPrimaryFails(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	breaker := circuit.New("ratelimit", circuit.WithFailureThreshold(2))
	fallback := NewInMemory()
	r := NewResilient(failingStore{err: errors.New("connection refused")}, fallback, breaker, logger)
	key := models.NewKey(models.ActionLogin, "carol@example.com")

	c, err := r.Increment(ctx, key, time.Minute)
	if err != nil || c.Count != 1 {
		t.Fatalf("expected fallback count 1, got %v %v", c, err)
	}
	if r.Degraded() {
		t.Fatal("breaker should still be closed after one failure")
	}

	c, err = r.Increment(ctx, key, time.Minute)
	if err != nil || c.Count != 2 {
		t.Fatalf("expected fallback count 2, got %v %v", c, err)
	}
	if !r.Degraded() {
		t.Fatal("breaker should open after threshold")
	}
}

func TestResilient_UsesPrimaryWhenHealthy(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	primary := NewInMemory()
	fallback := NewInMemory()
	r := NewResilient(primary, fallback, circuit.New("ratelimit"), logger)
	key := models.NewKey(models.ActionLogin, "dave@example.com")

	_, err := r.Increment(ctx, key, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := primary.Get(ctx, key)
	f, _ := fallback.Get(ctx, key)
	if p.Count != 1 || f.Count != 0 {
		t.Fatalf("expected primary=1 fallback=0, got %d %d", p.Count, f.Count)
	}
}

func TestInMemory_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := NewInMemoryWithClock(func() time.Time { return now })
	_, _ = st.Increment(context.Background(), "rl:a:b", time.Second)
	_, _ = st.Increment(context.Background(), "rl:a:c", time.Hour)

	now = now.Add(2 * time.Second)
	if removed := st.Sweep(); removed != 1 {
		t.Fatalf("expected 1 swept window, got %d", removed)
	}
}

type gaugeRecorder struct{ values []bool }

func (g *gaugeRecorder) SetDegraded(degraded bool) { g.values = append(g.values, degraded) }

type switchableStore struct {
	Store
	down bool
}

func (s *switchableStore) Increment(ctx context.Context, key models.Key, ttl time.Duration) (models.Counter, error) {
	if s.down {
		return models.Counter{}, errors.New("connection refused")
	}
	return s.Store.Increment(ctx, key, ttl)
}

func TestResilient_ReportsDegradedTransitions(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	primary := &switchableStore{Store: NewInMemory(), down: true}
	gauge := &gaugeRecorder{}
	breaker := circuit.New("ratelimit", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
	r := NewResilient(primary, NewInMemory(), breaker, logger, WithDegradedGauge(gauge))
	key := models.NewKey(models.ActionLogin, "erin@example.com")

	for range 3 {
		_, _ = r.Increment(ctx, key, time.Minute)
	}
	if len(gauge.values) != 1 || !gauge.values[0] {
		t.Fatalf("expected a single degraded=true report, got %v", gauge.values)
	}

	primary.down = false
	_, _ = r.Increment(ctx, key, time.Minute)
	_, _ = r.Increment(ctx, key, time.Minute)
	if len(gauge.values) != 2 || gauge.values[1] {
		t.Fatalf("expected recovery to report degraded=false once, got %v", gauge.values)
	}
	if r.Degraded() {
		t.Fatal("breaker should be closed after recovery")
	}
}
