// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

package hostenv

import (
	"context"
	"testing"
	"time"

	"github.com/editorlink-project/editorlink/lib/mainloop"
	"github.com/editorlink-project/editorlink/lib/testutil"
)

func TestSimulated_PumpsDispatcher(t *testing.T) {
	host := NewSimulated(Identity{Name: "SimEditor", Version: "1.0"}, "/tmp/project")
	dispatcher := mainloop.NewDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go host.Run(ctx, dispatcher, time.Millisecond)

	pending := dispatcher.Submit(func() (any, error) { return "ticked", nil })
	testutil.RequireClosed(t, pending.Done(), time.Second, "simulated host should execute queued work")
	result, err := pending.Result()
	if err != nil || result != "ticked" {
		t.Fatalf("result = %v, %v", result, err)
	}
}

func TestSimulated_BusySkipsTicks(t *testing.T) {
	host := NewSimulated(Identity{Name: "SimEditor", Version: "1.0"}, "/tmp/project")
	dispatcher := mainloop.NewDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host.SetBusy(true)
	go host.Run(ctx, dispatcher, time.Millisecond)

	pending := dispatcher.Submit(func() (any, error) { return nil, nil })
	select {
	case <-pending.Done():
		t.Fatal("busy host must not execute work")
	case <-time.After(30 * time.Millisecond):
	}

	host.SetBusy(false)
	testutil.RequireClosed(t, pending.Done(), time.Second, "work should run once the host is idle again")
}

func TestSimulated_FinalDrainOnShutdown(t *testing.T) {
	host := NewSimulated(Identity{Name: "SimEditor", Version: "1.0"}, "/tmp/project")
	dispatcher := mainloop.NewDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		host.Run(ctx, dispatcher, time.Hour) // ticker never fires
		close(done)
	}()

	pending := dispatcher.Submit(func() (any, error) { return nil, nil })
	cancel()
	testutil.RequireClosed(t, done, time.Second, "Run should return on cancel")
	testutil.RequireClosed(t, pending.Done(), time.Second, "queued work should complete in the final drain")
}
