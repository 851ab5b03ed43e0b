// Package history implements the price history store: an on-disk cached,
// rate-limited front over a chain of market-data fetch methods.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/openfolio/portfolio-analyzer/internal/clients/yahoo"
)

// ErrDataUnavailable is returned when every fetch method and retry has been
// exhausted for a symbol.
var ErrDataUnavailable = errors.New("history: data unavailable")

const cacheFileExt = ".json"

// FetchFunc fetches a fresh price series for (symbol, period)
type FetchFunc func(ctx context.Context, symbol, period string) ([]yahoo.HistoricalPrice, error)

// Method is a named entry in the ordered fetch chain. Each method is tried
// only when the previous ones yielded no usable series.
type Method struct {
	Name  string
	Fetch FetchFunc
}

// RetryPolicy bounds the whole-chain retry loop
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration // doubles after every failed attempt
}

// Options configures a Store
type Options struct {
	CacheDir           string        // empty = ~/.investment_cache
	CacheTTL           time.Duration // 0 = default 5 minutes
	MinRequestInterval time.Duration // 0 = default 1 second
	Retry              RetryPolicy   // zero value = 3 attempts, 4s base delay
}

// Stats summarizes the on-disk cache and rate limiter state
type Stats struct {
	TotalCachedEntries int     `json:"total_cached_entries"`
	CacheSizeBytes     int64   `json:"cache_size_bytes"`
	OldestEntryAgeSecs float64 `json:"oldest_entry_age_seconds"`
	NewestEntryAgeSecs float64 `json:"newest_entry_age_seconds"`
	ActiveSymbols      int     `json:"active_symbols"`
}

// Store serves price series from a time-based disk cache, falling back to an
// ordered chain of fetch methods with bounded retries. Concurrent requests
// for the same (symbol, period) are coalesced into a single fetch.
type Store struct {
	methods  []Method
	cacheDir string
	ttl      time.Duration
	interval time.Duration
	retry    RetryPolicy
	log      zerolog.Logger

	mu          sync.Mutex
	lastRequest map[string]time.Time

	sf singleflight.Group
}

// NewStore creates a store with its cache directory initialized. Directory
// creation prefers 0775 permissions; on failure the store falls back to a
// process-local .cache directory with 0755.
func NewStore(methods []Method, opts Options, log zerolog.Logger) (*Store, error) {
	if len(methods) == 0 {
		return nil, errors.New("history: at least one fetch method required")
	}

	if opts.CacheTTL == 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.MinRequestInterval == 0 {
		opts.MinRequestInterval = time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry.MaxAttempts = 3
	}
	if opts.Retry.BaseDelay == 0 {
		opts.Retry.BaseDelay = 4 * time.Second
	}

	log = log.With().Str("component", "history_store").Logger()

	cacheDir, err := initCacheDir(opts.CacheDir, log)
	if err != nil {
		return nil, err
	}
	log.Info().Str("cache_dir", cacheDir).Msg("Cache directory initialized")

	return &Store{
		methods:     methods,
		cacheDir:    cacheDir,
		ttl:         opts.CacheTTL,
		interval:    opts.MinRequestInterval,
		retry:       opts.Retry,
		log:         log,
		lastRequest: make(map[string]time.Time),
	}, nil
}

// initCacheDir resolves and creates the cache directory. Owner and group get
// read/write/execute, others read/execute.
func initCacheDir(dir string, log zerolog.Logger) (string, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			dir = ".investment_cache"
		} else {
			dir = filepath.Join(home, ".investment_cache")
		}
	}

	abs, err := filepath.Abs(dir)
	if err == nil {
		dir = abs
	}

	if err := os.MkdirAll(dir, 0755); err == nil {
		if err := os.Chmod(dir, 0775); err == nil {
			return dir, nil
		}
		log.Error().Err(err).Str("dir", dir).Msg("Failed to set permissions on cache directory")
	} else {
		log.Error().Err(err).Str("dir", dir).Msg("Failed to create cache directory")
	}

	// Fallback to a process-local directory
	fallback, err := filepath.Abs(".cache")
	if err != nil {
		fallback = ".cache"
	}
	if err := os.MkdirAll(fallback, 0755); err != nil {
		return "", fmt.Errorf("failed to create fallback cache directory: %w", err)
	}
	return fallback, nil
}

// CacheDir returns the resolved cache directory
func (s *Store) CacheDir() string {
	return s.cacheDir
}

// Get returns the price series for (symbol, period), from cache when fresh,
// otherwise fetched through the method chain with retries. Failures after
// exhausting all methods and attempts return ErrDataUnavailable.
//
// Concurrent gets for the same key coalesce into one fetch. The fetch runs
// on a context detached from the callers', so one caller cancelling cannot
// fail the waiters that coalesced onto its flight; each caller observes its
// own context while waiting.
func (s *Store) Get(ctx context.Context, symbol, period string) (*Series, error) {
	key := cacheKey(symbol, period)

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(key, func() (interface{}, error) {
		if series := s.readCache(key); series != nil {
			s.log.Debug().Str("symbol", symbol).Str("period", period).Msg("Cache hit")
			return series, nil
		}
		return s.fetchWithRetry(fetchCtx, symbol, period, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Series), nil
	}
}

// fetchWithRetry runs the whole fetch chain up to MaxAttempts times with
// exponential backoff between attempts.
func (s *Store) fetchWithRetry(ctx context.Context, symbol, period, key string) (*Series, error) {
	delay := s.retry.BaseDelay
	var lastErr error

	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			s.log.Warn().
				Str("symbol", symbol).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("Retrying fetch after backoff")
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		series, err := s.fetchOnce(ctx, symbol, period)
		if err == nil {
			s.writeCache(key, series)
			return series, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
	}

	s.log.Error().
		Err(lastErr).
		Str("symbol", symbol).
		Int("attempts", s.retry.MaxAttempts).
		Msg("Failed to fetch data after all attempts")

	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrDataUnavailable, symbol, s.retry.MaxAttempts, lastErr)
}

// fetchOnce walks the method chain a single time. Rate limiting is enforced
// before every upstream call and the per-symbol timestamp is recorded at
// request start, so fallback methods and failed attempts stay spaced by the
// minimum interval too.
func (s *Store) fetchOnce(ctx context.Context, symbol, period string) (*Series, error) {
	var lastErr error
	for _, method := range s.methods {
		if err := s.waitRateLimit(ctx, symbol); err != nil {
			return nil, err
		}
		s.recordRequest(symbol)

		bars, err := method.Fetch(ctx, symbol, period)
		if err != nil {
			if errors.Is(err, yahoo.ErrRateLimited) {
				// Transient upstream signal: abort the chain, let the
				// retry loop back off.
				return nil, err
			}
			s.log.Warn().
				Err(err).
				Str("symbol", symbol).
				Str("method", method.Name).
				Msg("Fetch method failed, trying next")
			lastErr = err
			continue
		}
		if len(bars) == 0 {
			s.log.Warn().
				Str("symbol", symbol).
				Str("method", method.Name).
				Msg("Fetch method returned no data, trying next")
			lastErr = fmt.Errorf("no data from %s", method.Name)
			continue
		}

		s.log.Info().
			Str("symbol", symbol).
			Str("period", period).
			Str("method", method.Name).
			Int("bars", len(bars)).
			Msg("Fetched price series")

		return &Series{
			Symbol:    symbol,
			Period:    period,
			Bars:      bars,
			FetchedAt: time.Now(),
		}, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no fetch method produced data")
	}
	return nil, lastErr
}

// waitRateLimit blocks until at least MinRequestInterval has elapsed since
// the last upstream request for symbol, or the context is done.
func (s *Store) waitRateLimit(ctx context.Context, symbol string) error {
	s.mu.Lock()
	wait := time.Until(s.lastRequest[symbol].Add(s.interval))
	s.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	s.log.Debug().Str("symbol", symbol).Dur("wait", wait).Msg("Rate limit wait")
	return sleepCtx(ctx, wait)
}

func (s *Store) recordRequest(symbol string) {
	s.mu.Lock()
	s.lastRequest[symbol] = time.Now()
	s.mu.Unlock()
}

// readCache returns the cached series for key if it exists and is fresh.
// Any read or decode failure is logged and treated as a miss.
func (s *Store) readCache(key string) *Series {
	path := filepath.Join(s.cacheDir, key+cacheFileExt)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var series Series
	if err := json.Unmarshal(data, &series); err != nil {
		s.log.Warn().Err(err).Str("file", path).Msg("Corrupt cache file, refetching")
		return nil
	}

	if time.Since(series.FetchedAt) >= s.ttl {
		return nil
	}
	return &series
}

// writeCache persists the series atomically (temp file + rename). Failures
// are logged, never fatal.
func (s *Store) writeCache(key string, series *Series) {
	data, err := json.Marshal(series)
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to serialize cache entry")
		return
	}

	tmp, err := os.CreateTemp(s.cacheDir, key+".tmp-*")
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to create cache temp file")
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		s.log.Error().Err(err).Str("key", key).Msg("Failed to write cache entry")
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return
	}

	if err := os.Rename(tmpName, filepath.Join(s.cacheDir, key+cacheFileExt)); err != nil {
		_ = os.Remove(tmpName)
		s.log.Error().Err(err).Str("key", key).Msg("Failed to store cache entry")
	}
}

// Clear removes cached entries and the rate-limit timestamp for one symbol
func (s *Store) Clear(symbol string) error {
	matches, err := filepath.Glob(filepath.Join(s.cacheDir, escapeGlob(symbol)+"_*"+cacheFileExt))
	if err != nil {
		return fmt.Errorf("failed to list cache files: %w", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	s.mu.Lock()
	delete(s.lastRequest, symbol)
	s.mu.Unlock()

	s.log.Info().Str("symbol", symbol).Int("removed", len(matches)).Msg("Cache cleared for symbol")
	return nil
}

// ClearAll removes every cached entry and all rate-limit timestamps
func (s *Store) ClearAll() error {
	matches, err := filepath.Glob(filepath.Join(s.cacheDir, "*"+cacheFileExt))
	if err != nil {
		return fmt.Errorf("failed to list cache files: %w", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	s.mu.Lock()
	s.lastRequest = make(map[string]time.Time)
	s.mu.Unlock()

	s.log.Info().Int("removed", len(matches)).Msg("Cache cleared")
	return nil
}

// PruneExpired removes cache files older than the TTL. Used by the periodic
// cleanup job.
func (s *Store) PruneExpired() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.cacheDir, "*"+cacheFileExt))
	if err != nil {
		return 0, fmt.Errorf("failed to list cache files: %w", err)
	}

	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) >= s.ttl {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// GetStats returns cache statistics
func (s *Store) GetStats() (*Stats, error) {
	matches, err := filepath.Glob(filepath.Join(s.cacheDir, "*"+cacheFileExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list cache files: %w", err)
	}

	stats := &Stats{TotalCachedEntries: len(matches)}

	var oldest, newest time.Time
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		stats.CacheSizeBytes += info.Size()
		mtime := info.ModTime()
		if oldest.IsZero() || mtime.Before(oldest) {
			oldest = mtime
		}
		if newest.IsZero() || mtime.After(newest) {
			newest = mtime
		}
	}

	if !oldest.IsZero() {
		stats.OldestEntryAgeSecs = time.Since(oldest).Seconds()
		stats.NewestEntryAgeSecs = time.Since(newest).Seconds()
	}

	s.mu.Lock()
	stats.ActiveSymbols = len(s.lastRequest)
	s.mu.Unlock()

	return stats, nil
}

func cacheKey(symbol, period string) string {
	return sanitize(symbol) + "_" + sanitize(period)
}

// sanitize keeps cache file names filesystem-safe for symbols like ^GSPC or
// BRK/B.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, s)
}

func escapeGlob(s string) string {
	s = sanitize(s)
	replacer := strings.NewReplacer("*", `\*`, "?", `\?`, "[", `\[`)
	return replacer.Replace(s)
}

// sleepCtx sleeps for d unless the context finishes first
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
