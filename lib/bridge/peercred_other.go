// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package bridge

import "net"

// verifySameUserPeer is a no-op on platforms without SO_PEERCRED; the
// socket file mode remains the access control there.
func verifySameUserPeer(net.Conn) error {
	return nil
}
