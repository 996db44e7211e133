// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package bridge

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// verifySameUserPeer checks via SO_PEERCRED that the connecting
// process runs as the same user as the bridge. The socket file mode
// already gates access; this closes the gap where the socket directory
// permissions are looser than expected.
func verifySameUserPeer(connection net.Conn) error {
	unixConnection, ok := connection.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("peer credentials unavailable on %T", connection)
	}
	raw, err := unixConnection.SyscallConn()
	if err != nil {
		return fmt.Errorf("accessing raw connection: %w", err)
	}

	var credentials *unix.Ucred
	var credentialsError error
	controlError := raw.Control(func(fd uintptr) {
		credentials, credentialsError = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if controlError != nil {
		return fmt.Errorf("reading peer credentials: %w", controlError)
	}
	if credentialsError != nil {
		return fmt.Errorf("reading peer credentials: %w", credentialsError)
	}

	if int(credentials.Uid) != os.Getuid() {
		return fmt.Errorf("peer uid %d does not match server uid %d", credentials.Uid, os.Getuid())
	}
	return nil
}
