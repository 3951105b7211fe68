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

// errPollInterrupted is returned by doPoll when the underlying syscall was
// interrupted by a signal (§7 case 2: treat as a no-event iteration).
var errPollInterrupted = errors.New("evloop: poll interrupted")

// pollDescriptor is the scratch table entry of §4.3 Phase 1: one fd plus its
// interest mask going in, its returned events mask coming out.
type pollDescriptor struct {
	fd      int
	events  EventMask
	revents EventMask
}

// eventsToNative translates the abstract interest mask to POSIX poll(2)
// flags (§4.3 Phase 3's mapping table).
func eventsToNative(events EventMask) int16 {
	var native int16
	if events&EventRead != 0 {
		native |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		native |= unix.POLLOUT
	}
	if events&EventError != 0 {
		native |= unix.POLLERR
	}
	return native
}

// nativeToEvents is the inverse of eventsToNative, applied at harvest time.
// POLLHUP and POLLERR are both folded into the abstract ERROR bit, since a
// hangup on a SIP transport fd is as much a "this source is due" signal as
// an explicit error.
func nativeToEvents(native int16) EventMask {
	var events EventMask
	if native&unix.POLLIN != 0 {
		events |= EventRead
	}
	if native&unix.POLLOUT != 0 {
		events |= EventWrite
	}
	if native&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		events |= EventError
	}
	return events
}

// doPoll invokes unix.Poll over the scratch table built in Phase 1, with the
// duration computed in Phase 2 (-1 meaning "block indefinitely"). It mutates
// each descriptor's revents field in place.
//
// This is the component's one concession to choosing a readiness primitive:
// the specification's per-iteration full-rebuild contract (Phase 1 walks
// every source and rebuilds the table from scratch every call) is exactly
// what poll(2) is shaped for, rather than the persistent-registration model
// of epoll/kqueue, so unix.Poll is used here instead of the donor's
// FastPoller (still golang.org/x/sys/unix, just a different syscall).
func doPoll(descriptors []pollDescriptor, timeoutMS int64) error {
	fds := make([]unix.PollFd, len(descriptors))
	for i, d := range descriptors {
		fds[i] = unix.PollFd{Fd: int32(d.fd), Events: eventsToNative(d.events)}
	}

	_, err := unix.Poll(fds, int(timeoutMS))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return errPollInterrupted
		}
		return err
	}

	for i := range fds {
		descriptors[i].revents = nativeToEvents(fds[i].Revents)
	}
	return nil
}
