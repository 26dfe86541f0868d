package callgroup

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDeduplication(t *testing.T) {
	var g Group[int, string]
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	fn := func() (string, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		return "value", nil
	}

	const n = 10
	var wg sync.WaitGroup
	vals := make([]string, n)
	errs := make([]error, n)
	var sharedCount atomic.Int32

	// First caller starts the work.
	wg.Go(func() {
		vals[0], errs[0], _ = g.Do(1, fn)
	})

	// Wait for fn to start, then pile on.
	<-started
	for i := 1; i < n; i++ {
		wg.Go(func() {
			var shared bool
			vals[i], errs[i], shared = g.Do(1, fn)
			if shared {
				sharedCount.Add(1)
			}
		})
	}

	// Give the waiters time to block on the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range vals {
		if errs[i] != nil {
			t.Errorf("caller %d got error: %v", i, errs[i])
		}
		if vals[i] != "value" {
			t.Errorf("caller %d got %q", i, vals[i])
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fn called %d times, want 1", got)
	}
	if got := sharedCount.Load(); got != n-1 {
		t.Errorf("expected %d shared results, got %d", n-1, got)
	}
}

func TestIndependentKeys(t *testing.T) {
	var g Group[int, int]
	var calls atomic.Int32

	var wg sync.WaitGroup
	for _, key := range []int{1, 2, 3} {
		wg.Go(func() {
			v, err, _ := g.Do(key, func() (int, error) {
				calls.Add(1)
				return key * 10, nil
			})
			if err != nil || v != key*10 {
				t.Errorf("key %d: got %d, %v", key, v, err)
			}
		})
	}
	wg.Wait()

	if got := calls.Load(); got != 3 {
		t.Errorf("fn called %d times, want 3", got)
	}
}

func TestErrorPropagation(t *testing.T) {
	var g Group[string, int]
	want := errors.New("boom")

	_, err, shared := g.Do("k", func() (int, error) { return 0, want })
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if shared {
		t.Fatal("a lone call must not be shared")
	}
}

func TestKeyForgottenAfterCompletion(t *testing.T) {
	var g Group[string, int]
	var calls atomic.Int32
	fn := func() (int, error) {
		return int(calls.Add(1)), nil
	}

	first, _, _ := g.Do("k", fn)
	second, _, _ := g.Do("k", fn)
	if first != 1 || second != 2 {
		t.Fatalf("expected sequential calls to run again, got %d then %d", first, second)
	}
}
