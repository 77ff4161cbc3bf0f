package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchServesFreshValues(t *testing.T) {
	c := New[int]("test", nil)
	current := time.Now()
	c.now = func() time.Time { return current }

	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	ctx := context.Background()
	if v, err := c.Fetch(ctx, "k", 30*time.Second, fetch); err != nil || v != 1 {
		t.Fatalf("first Fetch() = %d, %v", v, err)
	}
	if v, _ := c.Fetch(ctx, "k", 30*time.Second, fetch); v != 1 {
		t.Fatalf("expected cached value, got %d", v)
	}

	current = current.Add(31 * time.Second)
	if v, _ := c.Fetch(ctx, "k", 30*time.Second, fetch); v != 2 {
		t.Fatalf("expected refetch after stale time, got %d", v)
	}

	if v, _ := c.Fetch(ctx, "k", 0, fetch); v != 3 {
		t.Fatalf("expected zero stale time to always fetch, got %d", v)
	}

	c.Invalidate("k")
	if v, _ := c.Fetch(ctx, "k", time.Hour, fetch); v != 4 {
		t.Fatalf("expected refetch after invalidate, got %d", v)
	}
}

func TestFetchSharesInFlightCall(t *testing.T) {
	c := New[string]("test", nil)
	release := make(chan struct{})
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Fetch(context.Background(), "k", time.Minute, func(context.Context) (string, error) {
				calls.Add(1)
				<-release
				return "value", nil
			})
			if err != nil {
				t.Errorf("Fetch() error = %v", err)
			}
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one shared call, got %d", calls.Load())
	}
	for _, r := range results {
		if r != "value" {
			t.Fatalf("unexpected result %q", r)
		}
	}
}

func TestStaleInFlightResultIsDiscarded(t *testing.T) {
	c := New[string]("test", nil)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan string)
	go func() {
		v, _ := c.Fetch(context.Background(), "k", time.Minute, func(context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
		done <- v
	}()

	<-started
	c.Set("k", "new")
	close(release)

	if got := <-done; got != "new" {
		t.Fatalf("expected newer value to win, got %q", got)
	}
	e, _ := c.Get("k")
	if e.Value != "new" {
		t.Fatalf("expected committed value new, got %q", e.Value)
	}
}

func TestOptimisticValueReplacedByFetch(t *testing.T) {
	c := New[[]string]("test", nil)
	ctx := context.Background()

	_, _ = c.Fetch(ctx, "list", time.Minute, func(context.Context) ([]string, error) {
		return []string{"a"}, nil
	})

	c.SetOptimistic("list", func(cur []string, ok bool) ([]string, bool) {
		return append([]string{"placeholder"}, cur...), true
	})
	e, _ := c.Get("list")
	if !e.Optimistic || len(e.Value) != 2 || e.Value[0] != "placeholder" {
		t.Fatalf("expected optimistic row first, got %+v", e)
	}

	v, err := c.Fetch(ctx, "list", time.Minute, func(context.Context) ([]string, error) {
		return []string{"server", "a"}, nil
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(v) != 2 || v[0] != "server" {
		t.Fatalf("expected authoritative value, got %v", v)
	}
	if e, _ := c.Get("list"); e.Optimistic {
		t.Fatal("expected optimistic flag cleared")
	}
}

func TestErrorsAreCachedAsState(t *testing.T) {
	c := New[int]("test", nil)
	ctx := context.Background()
	boom := errors.New("boom")

	_, _ = c.Fetch(ctx, "k", time.Minute, func(context.Context) (int, error) { return 7, nil })
	c.Invalidate("k")

	v, err := c.Fetch(ctx, "k", time.Minute, func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if v != 7 {
		t.Fatalf("expected previous value kept, got %d", v)
	}
	e, ok := c.Get("k")
	if !ok || !errors.Is(e.Err, boom) || e.Value != 7 {
		t.Fatalf("unexpected entry %+v", e)
	}
	if c.Fresh("k", time.Minute) {
		t.Fatal("expected error entry not to count as fresh")
	}
}

func TestUpdateSkipsMissingWhenRequested(t *testing.T) {
	c := New[int]("test", nil)
	c.Update("k", func(cur int, ok bool) (int, bool) { return cur + 1, ok })
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected no entry to be created")
	}
	c.Set("k", 1)
	c.Update("k", func(cur int, ok bool) (int, bool) { return cur + 1, ok })
	if e, _ := c.Get("k"); e.Value != 2 {
		t.Fatalf("expected 2, got %d", e.Value)
	}
	c.Remove("k")
	if len(c.Keys()) != 0 {
		t.Fatal("expected empty cache")
	}
}

func TestInvalidateDuringFetchForcesRefetch(t *testing.T) {
	c := New[int]("test", nil)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	done := make(chan int)
	go func() {
		v, _ := c.Fetch(ctx, "k", time.Minute, func(context.Context) (int, error) {
			n := int(calls.Add(1))
			close(started)
			<-release
			return n, nil
		})
		done <- v
	}()

	<-started
	c.Invalidate("k")
	close(release)
	if got := <-done; got != 1 {
		t.Fatalf("expected in-flight caller to get its own result, got %d", got)
	}
	if c.Fresh("k", time.Minute) {
		t.Fatal("expected entry to stay stale after invalidation")
	}

	v, err := c.Fetch(ctx, "k", time.Minute, func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	})
	if err != nil || v != 2 {
		t.Fatalf("Fetch() = %d, %v; want refetched value 2", v, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected two fetches, got %d", calls.Load())
	}
	if !c.Fresh("k", time.Minute) {
		t.Fatal("expected refetched entry to be fresh")
	}
}

func TestInvalidateAllCoversFirstFetchInFlight(t *testing.T) {
	c := New[string]("test", nil)
	ctx := context.Background()
	c.Set("a", "cached")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Fetch(ctx, "b", time.Minute, func(context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
	}()

	<-started
	c.InvalidateAll()
	close(release)
	<-done

	for _, key := range []string{"a", "b"} {
		e, ok := c.Get(key)
		if !ok || !e.Stale {
			t.Fatalf("expected %q to be stale, got %+v (ok=%v)", key, e, ok)
		}
	}
}

func TestInvalidateUnknownKeyIsNotAnEntry(t *testing.T) {
	c := New[int]("test", nil)
	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected invalidated but never fetched key to be missing")
	}
	if len(c.Keys()) != 0 {
		t.Fatalf("expected no keys, got %v", c.Keys())
	}
}
