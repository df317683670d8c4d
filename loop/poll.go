package loop

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Events is a set of descriptor readiness conditions.
type Events int

const (
	Readable Events = 1 << iota
	Writable
)

// ErrHangup is reported when the peer closed its end of the descriptor.
var ErrHangup = fmt.Errorf("hangup: %w", unix.EPIPE)

// PollCallback receives either a non-nil status or the ready events, never both.
type PollCallback func(status error, events Events)

// Poll watches a file descriptor for readiness.
type Poll struct {
	loop   *Loop
	fd     int
	events Events
	cb     PollCallback
	active bool
}

// NewPoll creates an inactive watcher for fd.
func (l *Loop) NewPoll(fd int) *Poll {
	return &Poll{loop: l, fd: fd}
}

// Fd returns the watched descriptor.
func (p *Poll) Fd() int {
	return p.fd
}

// Active reports whether the watcher is registered with the loop.
func (p *Poll) Active() bool {
	return p.active
}

// Start begins watching for events, replacing any previous mask and callback.
func (p *Poll) Start(events Events, cb PollCallback) {
	p.events = events
	p.cb = cb

	if !p.active {
		p.active = true
		p.loop.polls = append(p.loop.polls, p)
	}
}

// Stop removes the watcher from the loop.
func (p *Poll) Stop() {
	if !p.active {
		return
	}

	p.active = false
	for i, q := range p.loop.polls {
		if q == p {
			p.loop.polls = append(p.loop.polls[:i], p.loop.polls[i+1:]...)

			break
		}
	}
}

func (p *Poll) dispatch(revents int16) {
	switch {
	case revents&unix.POLLNVAL != 0:
		p.cb(unix.EBADF, 0)

		return
	case revents&unix.POLLERR != 0:
		p.cb(unix.EIO, 0)

		return
	case revents&unix.POLLHUP != 0 && revents&unix.POLLIN == 0:
		p.cb(ErrHangup, 0)

		return
	}

	var ev Events
	if revents&unix.POLLIN != 0 {
		ev |= Readable
	}
	if revents&unix.POLLOUT != 0 {
		ev |= Writable
	}

	ev &= p.events
	if ev != 0 {
		p.cb(nil, ev)
	}
}

func (e Events) pollEvents() int16 {
	var ev int16
	if e&Readable != 0 {
		ev |= unix.POLLIN
	}
	if e&Writable != 0 {
		ev |= unix.POLLOUT
	}

	return ev
}
