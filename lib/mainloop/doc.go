// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package mainloop marshals work from arbitrary goroutines onto the
// host editor's single cooperative execution thread.
//
// The host is the only context allowed to touch editor state, and the
// bridge does not control when it runs: the host calls
// [Dispatcher.Drain] once per tick of its own loop, executing every
// work item queued since the previous tick in submission order.
// Connection workers call [Dispatcher.Submit] and then wait on the
// returned [Pending] with a bounded, periodically-logged poll
// ([Pending.Wait]) so that a stalled host turns into an observable
// TIMEOUT instead of a silently hung connection.
//
// A test harness simulates the host by calling Drain itself; no real
// editor loop is needed.
package mainloop
