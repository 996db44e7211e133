// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostenv abstracts the editor process that embeds the bridge.
//
// The bridge never calls into editor APIs directly; it sees the host
// through the [Host] interface, which exposes only what the request
// path needs: identity for the status surface, the busy indicator for
// liveness diagnostics, and the project root for endpoint naming. The
// real editor implements Host and pumps the dispatcher from its own
// loop; [Simulated] stands in for it in the standalone daemon and in
// tests.
package hostenv

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/editorlink-project/editorlink/lib/mainloop"
)

// Identity describes the host application for status reporting.
type Identity struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Host is the bridge's view of the embedding editor.
type Host interface {
	// Identity returns the host application's name and version.
	Identity() Identity

	// Busy reports whether the host is currently occupied (compiling
	// scripts, importing assets) and therefore not pumping its loop at
	// the usual cadence. Must be callable from any goroutine.
	Busy() bool

	// ProjectRoot is the absolute path of the open project. It seeds
	// the endpoint identity.
	ProjectRoot() string
}

// Simulated is a Host with a self-driven cooperative loop, used by the
// standalone daemon and by tests. Its tick calls Dispatcher.Drain the
// way a real editor would from its update loop.
type Simulated struct {
	identity    Identity
	projectRoot string
	busy        atomic.Bool
}

// NewSimulated creates a simulated host.
func NewSimulated(identity Identity, projectRoot string) *Simulated {
	return &Simulated{identity: identity, projectRoot: projectRoot}
}

// Identity implements Host.
func (s *Simulated) Identity() Identity { return s.identity }

// Busy implements Host.
func (s *Simulated) Busy() bool { return s.busy.Load() }

// ProjectRoot implements Host.
func (s *Simulated) ProjectRoot() string { return s.projectRoot }

// SetBusy flips the busy indicator. Tests use it to exercise the
// liveness diagnostics.
func (s *Simulated) SetBusy(busy bool) { s.busy.Store(busy) }

// Run pumps the dispatcher every interval until ctx is cancelled,
// then drains one final time so already-queued work completes rather
// than leaving its submitters to time out during shutdown.
func (s *Simulated) Run(ctx context.Context, dispatcher *mainloop.Dispatcher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			dispatcher.Drain()
			return
		case <-ticker.C:
			if s.busy.Load() {
				// A busy editor skips bridge work for the tick, exactly
				// like a real host mid-compile.
				continue
			}
			dispatcher.Drain()
		}
	}
}
