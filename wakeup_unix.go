//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package evloop

import (
	"errors"

	"golang.org/x/sys/unix"
)

// newWakeupPipe constructs the wake-up channel (§3.2 control_rd/control_wr):
// a real unidirectional non-blocking pipe, matching the original's pipe()
// call and the spec's explicit "unidirectional byte pipe" wording, rather
// than an eventfd (the donor's choice for its JS-style microtask wakeups).
func newWakeupPipe() (rd, wr int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

// wakeupWrite writes the single byte that unblocks any in-flight poll
// (§4.4 quit). EAGAIN (pipe buffer momentarily full from a burst of Quit
// calls) is not an error worth surfacing: the reader is already guaranteed
// to wake.
func wakeupWrite(wr int) {
	var b [1]byte
	b[0] = 'a'
	for {
		_, err := unix.Write(wr, b[:])
		if err == nil || !errors.Is(err, unix.EINTR) {
			return
		}
	}
}

// drainWakeupPipe reads until EAGAIN, so bursts of Quit calls never
// accumulate bytes in the pipe buffer (§9 "Wake-up channel drain").
func drainWakeupPipe(rd int) {
	var buf [64]byte
	for {
		n, err := unix.Read(rd, buf[:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return
		}
		if n <= 0 {
			return
		}
	}
}

// closeWakeupPipe closes both wake-up channel endpoints (§4.5 loop_destroy).
func closeWakeupPipe(rd, wr int) error {
	err1 := unix.Close(rd)
	err2 := unix.Close(wr)
	if err1 != nil {
		return err1
	}
	return err2
}
