// Package cache is a stale-while-revalidate cache of remote resources.
//
// Each resource is registered once under a key together with the function
// that fetches it. Readers get the cached body immediately and a background
// revalidation is started when the body is older than the deduping interval.
// Concurrent fetches of the same key share a single request.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/victornm/giveboard/internal/domain"
	"github.com/victornm/giveboard/internal/errors"
	"github.com/victornm/giveboard/internal/event"
)

const defaultTimeout = 30 * time.Second

type Fetcher func(ctx context.Context) ([]byte, error)

type Options struct {
	DedupingInterval      time.Duration
	RefreshInterval       time.Duration
	RevalidateOnFocus     bool
	RevalidateOnReconnect bool
	ShouldRetryOnError    bool
	ErrorRetryCount       int
	ErrorRetryInterval    time.Duration
}

func DefaultOptions() Options {
	return Options{
		DedupingInterval:      2 * time.Second,
		RevalidateOnFocus:     true,
		RevalidateOnReconnect: true,
		ShouldRetryOnError:    true,
		ErrorRetryCount:       3,
		ErrorRetryInterval:    5 * time.Second,
	}
}

// StaticOptions is DefaultOptions without revalidation on focus, for data that rarely changes.
func StaticOptions() Options {
	o := DefaultOptions()
	o.RevalidateOnFocus = false
	return o
}

// State is what a reader sees of a resource. Data and Err may both be set:
// the last good body is kept when a later fetch fails.
type State struct {
	Data         []byte
	UpdatedAt    time.Time
	Err          error
	IsValidating bool
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Config struct {
	Store         Store
	EventBus      *event.Bus
	Timeout       time.Duration
	Now           func() time.Time
	NewTickerFunc func(d time.Duration) Ticker
}

type Cache struct {
	store     Store
	eb        *event.Bus
	timeout   time.Duration
	now       func() time.Time
	newTicker func(d time.Duration) Ticker

	group singleflight.Group
	wg    sync.WaitGroup
	done  chan struct{}
	once  sync.Once

	mu        sync.RWMutex
	resources map[string]*resource
}

type resource struct {
	key   string
	fetch Fetcher
	opts  Options

	mu          sync.Mutex
	err         error
	validating  bool
	retrying    bool
	lastAttempt time.Time
}

func New(c Config) *Cache {
	ca := &Cache{
		store:     c.Store,
		eb:        c.EventBus,
		timeout:   c.Timeout,
		now:       c.Now,
		newTicker: c.NewTickerFunc,
		done:      make(chan struct{}),
		resources: make(map[string]*resource),
	}

	if ca.store == nil {
		ca.store = NewMemoryStore()
	}
	if ca.eb == nil {
		ca.eb = event.NewBus()
	}
	if ca.timeout <= 0 {
		ca.timeout = defaultTimeout
	}
	if ca.now == nil {
		ca.now = time.Now
	}
	if ca.newTicker == nil {
		ca.newTicker = newTimeTicker
	}

	return ca
}

// Register adds a resource. Registering a key twice replaces the previous fetcher and options.
func (c *Cache) Register(key string, f Fetcher, opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resources[key] = &resource{
		key:   key,
		fetch: f,
		opts:  opts,
	}
}

// Keys returns the registered resource keys, sorted.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.resources))
	for k := range c.resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Get returns the cached state of key. The first read of a key blocks on the fetch.
// The returned error is only set for an unknown key or a store failure; fetch failures are reported in State.Err.
func (c *Cache) Get(ctx context.Context, key string) (State, error) {
	r, err := c.resource(key)
	if err != nil {
		return State{}, err
	}

	rec, err := c.store.Get(ctx, key)
	if err != nil {
		return State{}, fmt.Errorf("cache: get %s: %w", key, err)
	}

	if rec == nil {
		cacheMisses.WithLabelValues(key).Inc()

		rec, err = c.revalidate(ctx, r)
		if err != nil {
			c.retry(r)
		}

		return c.state(r, rec), nil
	}

	cacheHits.WithLabelValues(key).Inc()

	if c.stale(r, rec) {
		c.revalidateAsync(r)
	}

	return c.state(r, rec), nil
}

// Revalidate fetches key now, sharing any fetch already in flight.
func (c *Cache) Revalidate(ctx context.Context, key string) (State, error) {
	r, err := c.resource(key)
	if err != nil {
		return State{}, err
	}

	rec, err := c.revalidate(ctx, r)
	if err != nil {
		c.retry(r)

		// keep serving the previous body
		if rec, err = c.store.Get(ctx, key); err != nil {
			return State{}, fmt.Errorf("cache: get %s: %w", key, err)
		}
	}

	return c.state(r, rec), nil
}

// Mutate replaces the cached body of key without fetching.
func (c *Cache) Mutate(ctx context.Context, key string, data []byte) error {
	r, err := c.resource(key)
	if err != nil {
		return err
	}

	if err := c.store.Set(ctx, key, Record{Data: data, UpdatedAt: c.now()}); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}

	r.mu.Lock()
	r.err = nil
	r.mu.Unlock()

	c.eb.Publish(ctx, domain.EventResourceRevalidated{
		Key:     key,
		Data:    data,
		Changed: true,
	})

	return nil
}

// Focus revalidates every resource that asked to be refreshed when a viewer comes back to the dashboard.
func (c *Cache) Focus() int {
	return c.trigger(func(o Options) bool { return o.RevalidateOnFocus })
}

// Reconnect revalidates every resource that asked to be refreshed after connectivity returns.
func (c *Cache) Reconnect() int {
	return c.trigger(func(o Options) bool { return o.RevalidateOnReconnect })
}

// Run revalidates resources with a RefreshInterval on every tick until ctx is done or Close is called.
func (c *Cache) Run(ctx context.Context) {
	c.mu.RLock()
	var periodic []*resource
	for _, r := range c.resources {
		if r.opts.RefreshInterval > 0 {
			periodic = append(periodic, r)
		}
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	for _, r := range periodic {
		wg.Add(1)
		go func() {
			defer wg.Done()

			t := c.newTicker(r.opts.RefreshInterval)
			defer t.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-c.done:
					return
				case <-t.C():
					if _, err := c.revalidate(ctx, r); err != nil {
						c.retry(r)
					}
				}
			}
		}()
	}

	wg.Wait()
}

// Wait blocks until background revalidations and retries have finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Close stops pending retries and periodic refreshes, then waits for background work.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Cache) resource(key string) (*resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.resources[key]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("unknown resource: %s", key))
	}

	return r, nil
}

func (c *Cache) state(r *resource, rec *Record) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := State{
		Err:          r.err,
		IsValidating: r.validating,
	}
	if rec != nil {
		s.Data = rec.Data
		s.UpdatedAt = rec.UpdatedAt
	}

	return s
}

func (c *Cache) stale(r *resource, rec *Record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	last := rec.UpdatedAt
	if r.lastAttempt.After(last) {
		last = r.lastAttempt
	}

	return c.now().Sub(last) >= r.opts.DedupingInterval
}

func (c *Cache) trigger(match func(Options) bool) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, r := range c.resources {
		if match(r.opts) {
			c.revalidateAsync(r)
			n++
		}
	}

	return n
}

func (c *Cache) revalidateAsync(r *resource) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if _, err := c.revalidate(context.Background(), r); err != nil {
			c.retry(r)
		}
	}()
}

// revalidate fetches r and stores the body. Callers of the same key share one fetch.
func (c *Cache) revalidate(ctx context.Context, r *resource) (*Record, error) {
	v, err, _ := c.group.Do(r.key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		return c.fetch(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	return v.(*Record), nil
}

func (c *Cache) fetch(ctx context.Context, r *resource) (*Record, error) {
	r.mu.Lock()
	r.validating = true
	r.lastAttempt = c.now()
	r.mu.Unlock()

	start := time.Now()
	data, err := r.fetch(ctx)
	fetchDuration.WithLabelValues(r.key).Observe(time.Since(start).Seconds())

	r.mu.Lock()
	r.validating = false
	r.err = err
	r.mu.Unlock()

	if err != nil {
		fetchErrors.WithLabelValues(r.key).Inc()
		slog.ErrorContext(ctx, "cache: revalidate failed", "resource", r.key, "error", err)

		c.eb.Publish(ctx, domain.EventResourceRevalidated{
			Key: r.key,
			Err: err,
		})
		return nil, err
	}

	prev, err := c.store.Get(ctx, r.key)
	if err != nil {
		slog.ErrorContext(ctx, "cache: read previous record failed", "resource", r.key, "error", err)
	}

	rec := &Record{Data: data, UpdatedAt: c.now()}
	if err := c.store.Set(ctx, r.key, *rec); err != nil {
		return nil, fmt.Errorf("cache: set %s: %w", r.key, err)
	}

	c.eb.Publish(ctx, domain.EventResourceRevalidated{
		Key:     r.key,
		Data:    data,
		Changed: prev == nil || !bytes.Equal(prev.Data, data),
	})

	return rec, nil
}

// retry refetches a failed resource in the background, at most ErrorRetryCount times.
// Only one retry loop runs per resource.
func (c *Cache) retry(r *resource) {
	if !r.opts.ShouldRetryOnError || r.opts.ErrorRetryCount <= 0 {
		return
	}

	r.mu.Lock()
	if r.retrying {
		r.mu.Unlock()
		return
	}
	r.retrying = true
	r.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer func() {
			r.mu.Lock()
			r.retrying = false
			r.mu.Unlock()
			c.wg.Done()
		}()

		for attempt := 1; attempt <= r.opts.ErrorRetryCount; attempt++ {
			t := time.NewTimer(r.opts.ErrorRetryInterval)
			select {
			case <-c.done:
				t.Stop()
				return
			case <-t.C:
			}

			if _, err := c.revalidate(context.Background(), r); err == nil {
				return
			}

			slog.Warn("cache: retry failed", "resource", r.key, "attempt", attempt)
		}
	}()
}

// Load reads key and decodes its body into T.
// It fails only when there is no body to decode; a stale body is returned together with its State.
func Load[T any](ctx context.Context, c *Cache, key string) (T, State, error) {
	var v T

	s, err := c.Get(ctx, key)
	if err != nil {
		return v, s, err
	}

	if s.Data == nil {
		if s.Err == nil {
			return v, s, errors.New(errors.CodeInternal, errors.WithMessagef("no data for %s", key))
		}
		return v, s, s.Err
	}

	if err := json.Unmarshal(s.Data, &v); err != nil {
		return v, s, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("decode %s", key),
			errors.WithCause(err),
		)
	}

	return v, s, nil
}

type timeTicker struct {
	t *time.Ticker
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }

func (t timeTicker) Stop() { t.t.Stop() }
