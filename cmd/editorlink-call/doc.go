// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Command editorlink-call sends one request to a running bridge and
// prints the response.
//
//	editorlink-call --project-root ~/projects/spacegame scene.load '{"path":"Assets/Main.scene"}'
//	editorlink-call --socket /run/user/1000/editorlink-1a2b3c4d.sock bridge.status
//
// The endpoint socket is located the same way the bridge derives it:
// from the project root (or an explicit --socket path). Params are
// given as a JSON literal; stdin is read instead when params is "-".
// Exit status is 0 for a result response and 1 for an error response
// or transport failure.
package main
