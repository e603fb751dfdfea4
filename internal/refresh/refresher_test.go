package refresh

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CapIot.powerfeed/internal/metrics"
	"CapIot.powerfeed/internal/models"
)

type runnerFunc func(ctx context.Context) (*models.Measurements, error)

func (f runnerFunc) Run(ctx context.Context) (*models.Measurements, error) { return f(ctx) }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func okRunner(calls *atomic.Int32) Runner {
	return runnerFunc(func(context.Context) (*models.Measurements, error) {
		calls.Add(1)
		return &models.Measurements{}, nil
	})
}

func TestRefreshNowPublishesSnapshot(t *testing.T) {
	var calls atomic.Int32
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := New(okRunner(&calls), time.Hour, WithClock(fixedClock{now}))

	assert.Nil(t, r.Latest())

	first, err := r.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, now, first.RefreshedAt)

	second, err := r.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Version)
	assert.Same(t, second, r.Latest())
}

func TestRefreshNowKeepsPreviousSnapshotOnFailure(t *testing.T) {
	fail := errors.New("boom")
	var shouldFail atomic.Bool
	r := New(runnerFunc(func(context.Context) (*models.Measurements, error) {
		if shouldFail.Load() {
			return nil, fail
		}
		return &models.Measurements{}, nil
	}), time.Hour)

	good, err := r.RefreshNow(context.Background())
	require.NoError(t, err)

	shouldFail.Store(true)
	_, err = r.RefreshNow(context.Background())
	require.ErrorIs(t, err, fail)
	assert.Same(t, good, r.Latest())
}

func TestRefreshNowSkipsWhileBusy(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := New(runnerFunc(func(context.Context) (*models.Measurements, error) {
		close(entered)
		<-unblock
		return &models.Measurements{}, nil
	}), time.Hour, WithMetrics(m))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := r.RefreshNow(context.Background())
		assert.NoError(t, err)
	}()

	<-entered
	_, err := r.RefreshNow(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)

	close(unblock)
	wg.Wait()

	expected := `
# HELP powerfeed_refresh_skipped_total Refresh ticks skipped because another refresh held the guard.
# TYPE powerfeed_refresh_skipped_total counter
powerfeed_refresh_skipped_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "powerfeed_refresh_skipped_total"))
	assert.NotNil(t, r.Latest())
}

func TestRefreshNowDiscardsResultAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(runnerFunc(func(context.Context) (*models.Measurements, error) {
		cancel()
		return &models.Measurements{}, nil
	}), time.Hour)

	_, err := r.RefreshNow(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, r.Latest())
}

func TestStartAndStop(t *testing.T) {
	var calls atomic.Int32
	r := New(okRunner(&calls), 10*time.Millisecond)

	r.Start(context.Background())
	r.Start(context.Background())

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	r.Stop()

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load())

	_, err := r.RefreshNow(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	r.Stop()
}

type heldLock struct {
	token string
	ttl   time.Duration
}

type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]heldLock
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]heldLock{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, held := f.keys[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = heldLock{token: value.(string), ttl: ttl}
	return redis.NewBoolResult(true, nil)
}

// Eval runs the compare-and-delete release against the stored token.
func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if script != releaseScript || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, errors.New("unexpected script"))
	}
	if lock, ok := f.keys[keys[0]]; ok && lock.token == args[0] {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
}

func TestRedisGuard(t *testing.T) {
	store := newFakeRedis()
	g := NewRedisGuard(store, "powerfeed:refresh", 30*time.Second)

	release, ok, err := g.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, store.keys["powerfeed:refresh"].ttl)
	assert.NotEmpty(t, store.keys["powerfeed:refresh"].token)

	_, ok, err = g.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	_, ok, err = g.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuardLateReleaseKeepsSuccessorLock(t *testing.T) {
	store := newFakeRedis()
	first := NewRedisGuard(store, "powerfeed:refresh", time.Second)
	second := NewRedisGuard(store, "powerfeed:refresh", time.Second)

	releaseFirst, ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// The first holder outlives its TTL and another replica takes over.
	store.expire("powerfeed:refresh")
	releaseSecond, ok, err := second.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	releaseFirst()
	_, ok, err = first.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "a late release must not drop the successor's lock")

	releaseSecond()
	_, ok, err = first.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuardError(t *testing.T) {
	store := newFakeRedis()
	store.err = errors.New("connection refused")
	r := New(okRunner(new(atomic.Int32)), time.Hour, WithGuard(NewRedisGuard(store, "k", time.Second)))

	_, err := r.RefreshNow(context.Background())
	assert.EqualError(t, err, "connection refused")
}

func TestLocalGuard(t *testing.T) {
	var g LocalGuard
	release, ok, _ := g.Acquire(context.Background())
	require.True(t, ok)
	_, ok, _ = g.Acquire(context.Background())
	assert.False(t, ok)
	release()
	_, ok, _ = g.Acquire(context.Background())
	assert.True(t, ok)
}
