// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge is the editorlink IPC server: the Unix socket
// endpoint an agent tool server connects to in order to drive the
// editor.
//
// [Server.Start] binds the endpoint socket and accepts connections on
// a background goroutine; each accepted connection gets its own worker
// goroutine that processes newline-delimited JSON requests strictly
// sequentially — a connection's Nth response is fully written before
// its N+1th request is read. Handlers never run on the worker: the
// worker submits the routed call to the main-loop dispatcher and waits,
// with periodic liveness logging, up to a hard ceiling. Every received
// request line produces exactly one response line unless the transport
// itself fails.
//
// The server also owns the bridge's observability: every request
// outcome is recorded in the activity buffer and traced through the
// diagnostic log, and [Server.Status] answers liveness probes
// synchronously without touching the host loop.
package bridge
