// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

package mainloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/editorlink-project/editorlink/lib/testutil"
)

func TestDrain_FIFOAcrossGoroutines(t *testing.T) {
	dispatcher := NewDispatcher()

	// Submit from concurrent goroutines, but record the submission
	// order so the executed order can be compared against it.
	var submitMu sync.Mutex
	var submitted []int
	var executed []int

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			submitMu.Lock()
			defer submitMu.Unlock()
			submitted = append(submitted, id)
			dispatcher.Submit(func() (any, error) {
				executed = append(executed, id)
				return nil, nil
			})
		}(i)
	}
	wg.Wait()

	if count := dispatcher.Drain(); count != 16 {
		t.Fatalf("Drain executed %d items, want 16", count)
	}
	for i := range submitted {
		if executed[i] != submitted[i] {
			t.Fatalf("execution order %v does not match submission order %v", executed, submitted)
		}
	}
}

func TestDrain_CompletesPending(t *testing.T) {
	dispatcher := NewDispatcher()
	pending := dispatcher.Submit(func() (any, error) {
		return 42, nil
	})

	dispatcher.Drain()

	testutil.RequireClosed(t, pending.Done(), time.Second, "pending should complete after Drain")
	result, err := pending.Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("result = %v, want 42", result)
	}
}

func TestDrain_ItemsSubmittedDuringDrainWaitForNextTick(t *testing.T) {
	dispatcher := NewDispatcher()
	var late *Pending
	dispatcher.Submit(func() (any, error) {
		late = dispatcher.Submit(func() (any, error) { return "second tick", nil })
		return nil, nil
	})

	if count := dispatcher.Drain(); count != 1 {
		t.Fatalf("first Drain executed %d items, want 1", count)
	}
	select {
	case <-late.Done():
		t.Fatal("item submitted during Drain must not run in the same tick")
	default:
	}
	if count := dispatcher.Drain(); count != 1 {
		t.Fatalf("second Drain executed %d items, want 1", count)
	}
	testutil.RequireClosed(t, late.Done(), time.Second, "late item should complete on the next tick")
}

func TestDrain_RecoversPanic(t *testing.T) {
	dispatcher := NewDispatcher()
	pending := dispatcher.Submit(func() (any, error) {
		panic("handler exploded")
	})
	dispatcher.Drain()

	_, err := pending.Result()
	if err == nil {
		t.Fatal("expected an error from a panicking work item")
	}
}

func TestWait_ReturnsResultWhenCompleted(t *testing.T) {
	dispatcher := NewDispatcher()
	pending := dispatcher.Submit(func() (any, error) { return "done", nil })

	go dispatcher.Drain()

	result, err := pending.Wait(context.Background(), WaitOptions{PollInterval: 10 * time.Millisecond, Ceiling: time.Second})
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if result != "done" {
		t.Fatalf("result = %v", result)
	}
}

func TestWait_TimesOutAtCeiling(t *testing.T) {
	dispatcher := NewDispatcher()
	// Never drained: the host is "frozen".
	pending := dispatcher.Submit(func() (any, error) { return nil, nil })

	var polls atomic.Int64
	start := time.Now()
	_, err := pending.Wait(context.Background(), WaitOptions{
		PollInterval: 20 * time.Millisecond,
		Ceiling:      100 * time.Millisecond,
		OnPoll:       func(time.Duration) { polls.Add(1) },
	})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed < 100*time.Millisecond {
		t.Fatalf("timed out after %v, before the ceiling", elapsed)
	}
	if elapsed > 140*time.Millisecond {
		t.Fatalf("timed out after %v, more than one poll interval past the ceiling", elapsed)
	}
	if polls.Load() == 0 {
		t.Fatal("expected at least one liveness poll before timeout")
	}
}

func TestWait_CancelledContext(t *testing.T) {
	dispatcher := NewDispatcher()
	pending := dispatcher.Submit(func() (any, error) { return nil, nil })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := pending.Wait(ctx, WaitOptions{PollInterval: time.Second, Ceiling: time.Minute})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestWait_LateCompletionIsDiscarded(t *testing.T) {
	dispatcher := NewDispatcher()
	pending := dispatcher.Submit(func() (any, error) { return "late", nil })

	_, err := pending.Wait(context.Background(), WaitOptions{PollInterval: 5 * time.Millisecond, Ceiling: 20 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}

	// The host wakes up later and runs the abandoned item. Nothing
	// observes the result; the only requirement is that this is safe.
	if count := dispatcher.Drain(); count != 1 {
		t.Fatalf("Drain executed %d items, want 1", count)
	}
	testutil.RequireClosed(t, pending.Done(), time.Second, "abandoned item should still complete")
}
