package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"plndash/internal/core"
)

type fakeReader struct {
	calls atomic.Int32
	delay time.Duration
	fail  atomic.Int32 // number of calls that should still fail
	gate  chan struct{}
}

func (f *fakeReader) Describe() string { return "fake" }

func (f *fakeReader) ReadTable(ctx context.Context) (*core.Table, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail.Load() > 0 {
		f.fail.Add(-1)
		return nil, errors.New("connection refused")
	}
	return core.NewTable(
		[]string{"Tahun", "Bulan", "Produksi_kWh"},
		[][]string{{"2022", "1", "100"}},
	)
}

func TestLoad_Memoizes(t *testing.T) {
	src := &fakeReader{}
	l := New(src)

	first, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first != second {
		t.Error("expected the same *Table on repeated loads")
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("source calls = %d, want 1", got)
	}
	if !l.Loaded() || l.LoadedAt().IsZero() {
		t.Error("expected loader to report a loaded table")
	}
}

func TestLoad_ConcurrentCallersShareOneFetch(t *testing.T) {
	src := &fakeReader{gate: make(chan struct{})}
	l := New(src)

	const n = 16
	var wg sync.WaitGroup
	tables := make([]*core.Table, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i], errs[i] = l.Load(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if tables[i] != tables[0] {
			t.Fatalf("caller %d got a different table", i)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("source calls = %d, want 1", got)
	}
}

func TestLoad_FailureIsNotCached(t *testing.T) {
	src := &fakeReader{}
	src.fail.Store(1)
	l := New(src)

	_, err := l.Load(context.Background())
	if !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
	var du *core.DataUnavailableError
	if !errors.As(err, &du) || du.Source != "fake" {
		t.Errorf("err = %#v, want DataUnavailableError from fake", err)
	}
	if l.Loaded() {
		t.Fatal("failed load must not be memoized")
	}

	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("retry Load: %v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("source calls = %d, want 2", got)
	}
}

func TestLoad_TimeoutIsDataUnavailable(t *testing.T) {
	src := &fakeReader{delay: time.Second}
	l := New(src, WithTimeout(10*time.Millisecond))

	_, err := l.Load(context.Background())
	if !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want wrapped deadline", err)
	}
}

func TestLoad_CallerCancelDoesNotAbortFetch(t *testing.T) {
	src := &fakeReader{gate: make(chan struct{})}
	l := New(src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := l.Load(ctx)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("cancelled caller err = %v", err)
	}

	close(src.gate)
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load after cancel: %v", err)
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("source calls = %d, want 1", got)
	}
}

type emptyReader struct{}

func (emptyReader) Describe() string { return "empty" }

func (emptyReader) ReadTable(context.Context) (*core.Table, error) {
	return core.NewTable([]string{"Tahun"}, nil)
}

func TestLoad_EmptyDataset(t *testing.T) {
	_, err := New(emptyReader{}).Load(context.Background())
	if !errors.Is(err, core.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
}
