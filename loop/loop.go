// Package loop provides a single-threaded event loop with descriptor polling,
// one-shot and repeating timers, idle handlers and a goroutine-safe wakeup.
//
// All handle methods must be called from the goroutine running the loop.
// Post and Stop are the only exceptions.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Loop is an event loop driven by poll(2).
type Loop struct {
	polls  []*Poll
	timers timerHeap
	idles  []*Idle
	seq    uint64

	wake   [2]int
	mu     sync.Mutex
	posted []func()

	stop   atomic.Bool
	closed bool
}

// New creates a loop together with its wakeup pipe.
func New() (*Loop, error) {
	l := &Loop{}

	if err := unix.Pipe(l.wake[:]); err != nil {
		return nil, fmt.Errorf("failed to create wakeup pipe: %w", err)
	}

	for _, fd := range l.wake {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(l.wake[0])
			_ = unix.Close(l.wake[1])

			return nil, fmt.Errorf("failed to set non-blocking mode on wakeup pipe: %w", err)
		}
	}

	return l, nil
}

// Close releases the wakeup pipe. Handles still registered are abandoned and become inactive,
// so stopping them afterwards is a no-op.
func (l *Loop) Close() error {
	if l == nil || l.closed {
		return nil
	}

	l.closed = true

	for _, p := range l.polls {
		p.active = false
	}
	for _, t := range l.timers {
		t.index = -1
	}
	for _, h := range l.idles {
		h.active = false
	}

	l.polls = nil
	l.timers = nil
	l.idles = nil

	err0 := unix.Close(l.wake[0])
	err1 := unix.Close(l.wake[1])

	return errors.Join(err0, err1)
}

// Run iterates the loop until Stop is called or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if l.closed {
		return fmt.Errorf("loop is closed")
	}

	release := context.AfterFunc(ctx, l.Stop)
	defer release()
	defer l.stop.Store(false)

	for !l.stop.Load() {
		if err := l.iterate(-1); err != nil {
			return err
		}
	}

	return ctx.Err()
}

// RunOnce performs a single loop iteration, blocking in poll for at most timeout.
// A negative timeout blocks until a handle is ready.
func (l *Loop) RunOnce(timeout time.Duration) error {
	if l.closed {
		return fmt.Errorf("loop is closed")
	}

	return l.iterate(timeout)
}

// Stop makes Run return after the current iteration. Safe for concurrent use.
func (l *Loop) Stop() {
	l.stop.Store(true)
	l.signal()
}

// Post schedules fn to run on the loop goroutine. Safe for concurrent use.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()

	l.signal()
}

// Alive reports whether any handle is active.
func (l *Loop) Alive() bool {
	return len(l.polls) > 0 || len(l.timers) > 0 || len(l.idles) > 0
}

func (l *Loop) signal() {
	_, err := unix.Write(l.wake[1], []byte{1})
	if err != nil && !errors.Is(err, syscall.EAGAIN) {
		log.Warnf("Wakeup write failed: %v", err)
	}
}

func (l *Loop) iterate(maxWait time.Duration) error {
	l.runTimers(time.Now())
	l.runIdles()

	if err := l.poll(l.pollTimeout(maxWait)); err != nil {
		return err
	}

	l.runTimers(time.Now())
	l.runPosted()

	return nil
}

func (l *Loop) pollTimeout(maxWait time.Duration) int {
	if l.stop.Load() || len(l.idles) > 0 || l.hasPosted() {
		return 0
	}

	wait := maxWait
	if len(l.timers) > 0 {
		d := time.Until(l.timers[0].due)
		if d < 0 {
			d = 0
		}
		if wait < 0 || d < wait {
			wait = d
		}
	}

	if wait < 0 {
		return -1
	}

	return int((wait + time.Millisecond - 1) / time.Millisecond)
}

func (l *Loop) hasPosted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.posted) > 0
}

func (l *Loop) poll(timeoutMs int) error {
	active := make([]*Poll, len(l.polls))
	copy(active, l.polls)

	pfd := make([]unix.PollFd, 0, len(active)+1)
	pfd = append(pfd, unix.PollFd{Fd: int32(l.wake[0]), Events: unix.POLLIN})
	for _, p := range active {
		pfd = append(pfd, unix.PollFd{Fd: int32(p.fd), Events: p.events.pollEvents()})
	}

	var n int
	var err error

	// Loop to handle EINTR (interrupted system call)
	for {
		n, err = unix.Poll(pfd, timeoutMs)
		if !errors.Is(err, syscall.EINTR) {
			break
		}
	}

	if err != nil {
		return fmt.Errorf("poll failed: %w", err)
	}

	if n == 0 {
		return nil
	}

	if pfd[0].Revents != 0 {
		l.drainWakeup()
	}

	for i, p := range active {
		revents := pfd[i+1].Revents
		if revents == 0 || !p.active {
			continue
		}

		p.dispatch(revents)
	}

	return nil
}

func (l *Loop) drainWakeup() {
	var buf [64]byte
	for {
		n, err := unix.Read(l.wake[0], buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (l *Loop) runPosted() {
	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()

	for _, fn := range posted {
		fn()
	}
}

func (l *Loop) runIdles() {
	if len(l.idles) == 0 {
		return
	}

	idles := make([]*Idle, len(l.idles))
	copy(idles, l.idles)

	for _, h := range idles {
		if h.active {
			h.cb()
		}
	}
}
