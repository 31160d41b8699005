// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package peercred

import (
	"net"

	"golang.org/x/sys/unix"
)

// fromUnixConn reads LOCAL_PEERCRED from the connection's descriptor.
// Darwin reports the peer's effective uid and group list but no pid,
// so the pid field carries the -1 sentinel.
func fromUnixConn(conn *net.UnixConn) Provenance {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Unknown{}
	}

	var cred *unix.Xucred
	var credErr error
	controlErr := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptXucred(int(fd), unix.SOL_LOCAL, unix.LOCAL_PEERCRED)
	})
	if controlErr != nil || credErr != nil || cred == nil || cred.Ngroups < 1 {
		return Unknown{}
	}

	return LocalPeer{PID: -1, UID: cred.Uid, GID: cred.Groups[0]}
}
