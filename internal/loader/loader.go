// Package loader memoizes the dataset for the lifetime of the process.
package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"plndash/internal/core"
	applog "plndash/internal/log"
	"plndash/internal/source"
)

// DefaultTimeout bounds a single fetch of the dataset.
const DefaultTimeout = 30 * time.Second

// Loader fetches the table once and hands the same *core.Table to every
// caller afterwards. Concurrent first calls share one fetch. A failed fetch
// is not remembered, so the next call tries again.
type Loader struct {
	src     source.TableReader
	timeout time.Duration
	logger  *applog.Logger
	now     func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	table    *core.Table
	loadedAt time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithTimeout sets the per-fetch deadline; zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger sets the logger used for load events.
func WithLogger(logger *applog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger.WithComponent(applog.ComponentLoader)
		}
	}
}

// New creates a Loader over src.
func New(src source.TableReader, opts ...Option) *Loader {
	l := &Loader{
		src:     src,
		timeout: DefaultTimeout,
		logger:  applog.Discard().WithComponent(applog.ComponentLoader),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the memoized table, fetching it on first use. Every error
// it returns satisfies errors.Is(err, core.ErrDataUnavailable).
func (l *Loader) Load(ctx context.Context) (*core.Table, error) {
	if t := l.cached(); t != nil {
		return t, nil
	}

	ch := l.group.DoChan(l.src.Describe(), func() (any, error) {
		if t := l.cached(); t != nil {
			return t, nil
		}
		return l.fetch(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*core.Table), nil
	case <-ctx.Done():
		return nil, &core.DataUnavailableError{Source: l.src.Describe(), Err: ctx.Err()}
	}
}

// fetch runs detached from the caller's cancellation so that a caller
// giving up does not fail the others waiting on the same flight.
func (l *Loader) fetch(ctx context.Context) (*core.Table, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	start := l.now()
	desc := l.src.Describe()
	t, err := l.src.ReadTable(fetchCtx)
	if err == nil && t.Len() == 0 {
		err = errors.New("dataset has no rows")
	}
	if err != nil {
		l.logger.WarnContext(ctx, "Dataset load failed",
			applog.FieldOperation, applog.OpLoad,
			applog.FieldSource, desc,
			applog.FieldError, err.Error(),
			applog.FieldDuration, time.Since(start).Milliseconds())
		var du *core.DataUnavailableError
		if errors.As(err, &du) {
			return nil, err
		}
		return nil, &core.DataUnavailableError{Source: desc, Err: err}
	}

	l.mu.Lock()
	l.table = t
	l.loadedAt = l.now()
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "Dataset loaded",
		applog.FieldOperation, applog.OpLoad,
		applog.FieldSource, desc,
		applog.FieldRows, t.Len(),
		applog.FieldColumns, len(t.Columns()),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return t, nil
}

func (l *Loader) cached() *core.Table {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.table
}

// Loaded reports whether a table is memoized.
func (l *Loader) Loaded() bool {
	return l.cached() != nil
}

// LoadedAt returns when the memoized table was fetched; zero if never.
func (l *Loader) LoadedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadedAt
}

// Source describes where the table comes from.
func (l *Loader) Source() string {
	return l.src.Describe()
}
