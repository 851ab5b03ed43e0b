package history

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/portfolio-analyzer/internal/clients/yahoo"
)

func testBars(closes ...float64) []yahoo.HistoricalPrice {
	bars := make([]yahoo.HistoricalPrice, len(closes))
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = yahoo.HistoricalPrice{
			Date:   base.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func staticMethod(name string, bars []yahoo.HistoricalPrice) Method {
	return Method{
		Name: name,
		Fetch: func(context.Context, string, string) ([]yahoo.HistoricalPrice, error) {
			return bars, nil
		},
	}
}

func failingMethod(name string, err error) Method {
	return Method{
		Name: name,
		Fetch: func(context.Context, string, string) ([]yahoo.HistoricalPrice, error) {
			return nil, err
		},
	}
}

func newTestStore(t *testing.T, methods []Method, opts Options) *Store {
	t.Helper()
	if opts.CacheDir == "" {
		opts.CacheDir = t.TempDir()
	}
	if opts.Retry.BaseDelay == 0 {
		opts.Retry.BaseDelay = time.Millisecond
	}
	if opts.MinRequestInterval == 0 {
		opts.MinRequestInterval = time.Millisecond
	}
	store, err := NewStore(methods, opts, zerolog.New(nil).Level(zerolog.Disabled))
	require.NoError(t, err)
	return store
}

func TestGet_CacheRoundTrip(t *testing.T) {
	var calls atomic.Int32
	method := Method{
		Name: "counting",
		Fetch: func(context.Context, string, string) ([]yahoo.HistoricalPrice, error) {
			calls.Add(1)
			return testBars(100, 101, 102), nil
		},
	}

	store := newTestStore(t, []Method{method}, Options{})

	first, err := store.Get(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	require.False(t, first.Empty())

	second, err := store.Get(context.Background(), "AAPL", "1y")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "second get must be served from cache")
	assert.Equal(t, first.Closes(), second.Closes())
	assert.Equal(t, first.FetchedAt.Unix(), second.FetchedAt.Unix())
}

func TestGet_ExpiredCacheTriggersRefetch(t *testing.T) {
	var calls atomic.Int32
	method := Method{
		Name: "counting",
		Fetch: func(context.Context, string, string) ([]yahoo.HistoricalPrice, error) {
			calls.Add(1)
			return testBars(100), nil
		},
	}

	store := newTestStore(t, []Method{method}, Options{
		CacheTTL:           time.Nanosecond,
		MinRequestInterval: time.Nanosecond,
	})

	_, err := store.Get(context.Background(), "AAPL", "1d")
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "AAPL", "1d")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_FallbackChain(t *testing.T) {
	methods := []Method{
		failingMethod("primary", errors.New("upstream down")),
		staticMethod("empty", nil),
		staticMethod("fallback", testBars(50, 51)),
	}

	store := newTestStore(t, methods, Options{})

	series, err := store.Get(context.Background(), "MSFT", "1y")
	require.NoError(t, err)

	last, ok := series.LastClose()
	require.True(t, ok)
	assert.Equal(t, 51.0, last)
}

func TestGet_AllMethodsExhausted(t *testing.T) {
	var calls atomic.Int32
	method := Method{
		Name: "broken",
		Fetch: func(context.Context, string, string) ([]yahoo.HistoricalPrice, error) {
			calls.Add(1)
			return nil, errors.New("boom")
		},
	}

	store := newTestStore(t, []Method{method}, Options{
		Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})

	_, err := store.Get(context.Background(), "FAIL", "1y")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Equal(t, int32(3), calls.Load(), "chain must be retried three times")
}

func TestGet_RateLimitedIsRetried(t *testing.T) {
	var calls atomic.Int32
	method := Method{
		Name: "throttled",
		Fetch: func(context.Context, string, string) ([]yahoo.HistoricalPrice, error) {
			if calls.Add(1) == 1 {
				return nil, yahoo.ErrRateLimited
			}
			return testBars(10), nil
		},
	}

	store := newTestStore(t, []Method{method}, Options{
		Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})

	series, err := store.Get(context.Background(), "THROT", "1y")
	require.NoError(t, err)
	assert.False(t, series.Empty())
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_EnforcesMinRequestInterval(t *testing.T) {
	interval := 80 * time.Millisecond
	store := newTestStore(t, []Method{staticMethod("fast", testBars(1))}, Options{
		CacheTTL:           time.Nanosecond, // never serve from cache
		MinRequestInterval: interval,
	})

	start := time.Now()
	_, err := store.Get(context.Background(), "AAPL", "1d")
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "AAPL", "1d")
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, interval,
		"back-to-back fetches for one symbol must be separated by the minimum interval")
}

func TestGet_FallbackMethodsAreRateLimited(t *testing.T) {
	interval := 60 * time.Millisecond
	var calls atomic.Int32
	methods := []Method{
		{
			Name: "primary",
			Fetch: func(context.Context, string, string) ([]yahoo.HistoricalPrice, error) {
				calls.Add(1)
				return nil, errors.New("upstream down")
			},
		},
		{
			Name: "fallback",
			Fetch: func(context.Context, string, string) ([]yahoo.HistoricalPrice, error) {
				calls.Add(1)
				return testBars(5), nil
			},
		},
	}
	store := newTestStore(t, methods, Options{MinRequestInterval: interval})

	start := time.Now()
	_, err := store.Get(context.Background(), "AAPL", "1d")
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, elapsed, interval,
		"the fallback call must honor the per-symbol interval after the failed primary")
}

func TestGet_ContextCancellationDuringBackoff(t *testing.T) {
	store := newTestStore(t, []Method{failingMethod("down", errors.New("boom"))}, Options{
		Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Minute},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := store.Get(ctx, "SLOW", "1y")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGet_CoalescedWaiterSurvivesFirstCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	method := Method{
		Name: "slow",
		Fetch: func(context.Context, string, string) ([]yahoo.HistoricalPrice, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			return testBars(42), nil
		},
	}
	store := newTestStore(t, []Method{method}, Options{})

	type result struct {
		series *Series
		err    error
	}

	ctx1, cancel := context.WithCancel(context.Background())
	first := make(chan result, 1)
	go func() {
		series, err := store.Get(ctx1, "AAPL", "1y")
		first <- result{series, err}
	}()
	<-started

	// second caller joins the in-flight fetch
	second := make(chan result, 1)
	go func() {
		series, err := store.Get(context.Background(), "AAPL", "1y")
		second <- result{series, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	res := <-first
	require.ErrorIs(t, res.err, context.Canceled)

	close(release)
	res = <-second
	require.NoError(t, res.err)
	last, ok := res.series.LastClose()
	require.True(t, ok)
	assert.Equal(t, 42.0, last)
	assert.Equal(t, int32(1), calls.Load(), "both callers must share one upstream fetch")
}

func TestClear_RemovesSymbolEntriesAndRateLimitState(t *testing.T) {
	store := newTestStore(t, []Method{staticMethod("ok", testBars(1))}, Options{})

	_, err := store.Get(context.Background(), "AAPL", "1d")
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "MSFT", "1y")
	require.NoError(t, err)

	require.NoError(t, store.Clear("AAPL"))

	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalCachedEntries)
	assert.Equal(t, 1, stats.ActiveSymbols)
}

func TestClearAll_EmptiesCache(t *testing.T) {
	store := newTestStore(t, []Method{staticMethod("ok", testBars(1))}, Options{})

	_, err := store.Get(context.Background(), "AAPL", "1d")
	require.NoError(t, err)

	require.NoError(t, store.ClearAll())

	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalCachedEntries)
	assert.Equal(t, int64(0), stats.CacheSizeBytes)
	assert.Equal(t, 0, stats.ActiveSymbols)
}

func TestGetStats_ReportsEntries(t *testing.T) {
	store := newTestStore(t, []Method{staticMethod("ok", testBars(1, 2, 3))}, Options{})

	_, err := store.Get(context.Background(), "AAPL", "1y")
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "MSFT", "1y")
	require.NoError(t, err)

	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCachedEntries)
	assert.Greater(t, stats.CacheSizeBytes, int64(0))
	assert.Equal(t, 2, stats.ActiveSymbols)
	assert.GreaterOrEqual(t, stats.OldestEntryAgeSecs, stats.NewestEntryAgeSecs)
}

func TestPruneExpired(t *testing.T) {
	store := newTestStore(t, []Method{staticMethod("ok", testBars(1))}, Options{
		CacheTTL: 50 * time.Millisecond,
	})

	_, err := store.Get(context.Background(), "AAPL", "1d")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	removed, err := store.PruneExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestNewStore_RequiresMethods(t *testing.T) {
	_, err := NewStore(nil, Options{CacheDir: t.TempDir()}, zerolog.New(nil))
	assert.Error(t, err)
}

func TestSanitize_FilesystemSafeKeys(t *testing.T) {
	assert.Equal(t, "^GSPC_1y", cacheKey("^GSPC", "1y"))
	assert.Equal(t, "BRK-B_1y", cacheKey("BRK/B", "1y"))
}
