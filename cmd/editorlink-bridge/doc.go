// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Command editorlink-bridge runs the bridge as a standalone daemon
// with a simulated host loop.
//
// A real editor embeds lib/bridge directly and pumps the dispatcher
// from its own update loop; this binary exists so agent tool servers
// and protocol clients can be developed and tested without an editor
// process. It registers the built-in bridge methods plus an echo
// command, derives the endpoint from --project-root, and pumps the
// dispatcher on a configurable tick until interrupted.
package main
