// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package endpoint derives the bridge's stable endpoint identity.
//
// The endpoint name is "editorlink-" followed by the first eight hex
// characters of the BLAKE3 hash of the project root path (or of an
// explicit seed from configuration). The same project always maps to
// the same endpoint, so a client reconnects across editor restarts
// without any discovery step.
package endpoint

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// Prefix is the product prefix on every endpoint name.
const Prefix = "editorlink"

// Name derives the endpoint name from an identity seed, normally the
// absolute project root path. The seed is hashed, not embedded, so
// arbitrarily long paths produce fixed-length names and the name leaks
// nothing about the filesystem layout.
func Name(seed string) string {
	digest := blake3.Sum256([]byte(seed))
	return fmt.Sprintf("%s-%s", Prefix, hex.EncodeToString(digest[:4]))
}

// SocketPath places the endpoint's Unix socket under runDir.
func SocketPath(runDir, name string) string {
	return filepath.Join(runDir, name+".sock")
}

// DefaultRunDir returns the directory for endpoint sockets:
// $XDG_RUNTIME_DIR when set, otherwise the system temp directory.
// Socket paths must stay short (108-byte sockaddr_un limit), which
// both candidates satisfy.
func DefaultRunDir() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return runtimeDir
	}
	return os.TempDir()
}
