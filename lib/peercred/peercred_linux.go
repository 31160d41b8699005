// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package peercred

import (
	"net"

	"golang.org/x/sys/unix"
)

// fromUnixConn reads SO_PEERCRED from the connection's descriptor.
// The kernel fills in the pid, uid, and gid of the process that called
// connect(2); a pid of zero means the socket is not a connected
// AF_UNIX stream and the credentials are meaningless.
func fromUnixConn(conn *net.UnixConn) Provenance {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Unknown{}
	}

	var cred *unix.Ucred
	var credErr error
	controlErr := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if controlErr != nil || credErr != nil || cred == nil || cred.Pid <= 0 {
		return Unknown{}
	}

	return LocalPeer{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}
}
