package pulse

import (
	"errors"
	"io"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gen2brain/pulse/loop"
)

// Mainloop exposes a loop.Loop to the client library as its MainloopAPI.
// Each Context may be given its own Mainloop, several may share one loop.
type Mainloop struct {
	loop *loop.Loop
}

// NewMainloop returns a MainloopAPI that schedules library events on l.
func NewMainloop(l *loop.Loop) *Mainloop {
	return &Mainloop{loop: l}
}

// Loop returns the underlying event loop.
func (m *Mainloop) Loop() *loop.Loop {
	return m.loop
}

// Post runs fn on the loop goroutine. Safe for concurrent use.
func (m *Mainloop) Post(fn func()) {
	m.loop.Post(fn)
}

// IONew implements MainloopAPI.
func (m *Mainloop) IONew(fd int, events IOEventFlags, cb IOEventCallback) IOEvent {
	e := &ioEvent{
		poll:   m.loop.NewPoll(fd),
		fd:     fd,
		events: events,
		cb:     cb,
	}
	e.start()

	log.Tracef("io_new fd=%d events=%#x", fd, events)

	return e
}

// TimeNew implements MainloopAPI.
func (m *Mainloop) TimeNew(deadline time.Time, cb TimeEventCallback) TimeEvent {
	e := &timeEvent{
		timer: m.loop.NewTimer(),
		cb:    cb,
	}
	e.arm(deadline)

	log.Tracef("time_new deadline=%v", deadline)

	return e
}

// DeferNew implements MainloopAPI.
func (m *Mainloop) DeferNew(cb DeferEventCallback) DeferEvent {
	e := &deferEvent{
		idle: m.loop.NewIdle(),
		cb:   cb,
	}
	e.Enable(true)

	log.Trace("defer_new")

	return e
}

// Quit implements MainloopAPI. The host loop is owned by the application, so the request is ignored.
func (m *Mainloop) Quit(retval int) {
	log.Debugf("Quit(%d) ignored", retval)
}

type ioEvent struct {
	poll    *loop.Poll
	fd      int
	events  IOEventFlags
	cb      IOEventCallback
	destroy func()
	freed   bool
}

func (e *ioEvent) start() {
	if e.events == PA_IO_EVENT_NULL {
		e.poll.Stop()

		return
	}

	var ev loop.Events
	if e.events&PA_IO_EVENT_INPUT != 0 {
		ev |= loop.Readable
	}
	if e.events&PA_IO_EVENT_OUTPUT != 0 {
		ev |= loop.Writable
	}

	e.poll.Start(ev, e.dispatch)
}

func (e *ioEvent) dispatch(status error, ready loop.Events) {
	var flags IOEventFlags

	if status == nil {
		if ready&loop.Readable != 0 && e.events&PA_IO_EVENT_INPUT != 0 {
			flags |= PA_IO_EVENT_INPUT
		}
		if ready&loop.Writable != 0 && e.events&PA_IO_EVENT_OUTPUT != 0 {
			flags |= PA_IO_EVENT_OUTPUT
		}
	} else {
		if e.events&PA_IO_EVENT_HANGUP != 0 && isHangup(status) {
			flags |= PA_IO_EVENT_HANGUP
		}
		if e.events&PA_IO_EVENT_ERROR != 0 {
			flags |= PA_IO_EVENT_ERROR
		}
	}

	if flags == PA_IO_EVENT_NULL {
		return
	}

	e.cb(e, e.fd, flags)
}

func isHangup(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, unix.EPIPE) ||
		errors.Is(err, unix.ESPIPE) ||
		errors.Is(err, unix.ESHUTDOWN) ||
		errors.Is(err, unix.ETIMEDOUT)
}

// Enable changes the watched conditions. An unchanged mask is a no-op.
func (e *ioEvent) Enable(events IOEventFlags) {
	mustLive(e.freed, "io_enable")

	if events == e.events {
		return
	}

	e.events = events
	e.start()
}

func (e *ioEvent) Free() {
	mustLive(e.freed, "io_free")

	e.poll.Stop()
	e.freed = true

	log.Tracef("io_free fd=%d", e.fd)

	if e.destroy != nil {
		e.destroy()
	}
}

func (e *ioEvent) SetDestroy(cb func()) {
	mustLive(e.freed, "io_set_destroy")
	e.destroy = cb
}

type timeEvent struct {
	timer    *loop.Timer
	deadline time.Time
	cb       TimeEventCallback
	destroy  func()
	freed    bool
}

func (e *timeEvent) arm(deadline time.Time) {
	e.deadline = deadline

	if deadline.IsZero() {
		e.timer.Stop()

		return
	}

	e.timer.Start(e.fire, timeoutFor(deadline, time.Now()), 0)
}

func (e *timeEvent) fire() {
	e.cb(e, e.deadline)
}

// timeoutFor returns the delay until deadline rounded up to whole milliseconds, never negative.
func timeoutFor(deadline, now time.Time) time.Duration {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}

	// Sub saturates, keep the round-up from overflowing.
	if d > time.Duration(1<<62) {
		return time.Duration(1 << 62)
	}

	return (d + time.Millisecond - 1) / time.Millisecond * time.Millisecond
}

// Restart re-arms the timer for a new deadline. A zero deadline disarms it.
func (e *timeEvent) Restart(deadline time.Time) {
	mustLive(e.freed, "time_restart")
	e.arm(deadline)
}

func (e *timeEvent) Free() {
	mustLive(e.freed, "time_free")

	e.timer.Stop()
	e.freed = true

	log.Trace("time_free")

	if e.destroy != nil {
		e.destroy()
	}
}

func (e *timeEvent) SetDestroy(cb func()) {
	mustLive(e.freed, "time_set_destroy")
	e.destroy = cb
}

type deferEvent struct {
	idle    *loop.Idle
	cb      DeferEventCallback
	enabled bool
	destroy func()
	freed   bool
}

func (e *deferEvent) fire() {
	e.cb(e)
}

// Enable starts or stops the deferred event. Enabling an enabled event does nothing.
func (e *deferEvent) Enable(enable bool) {
	mustLive(e.freed, "defer_enable")

	if enable == e.enabled {
		return
	}

	e.enabled = enable
	if enable {
		e.idle.Start(e.fire)
	} else {
		e.idle.Stop()
	}
}

func (e *deferEvent) Free() {
	mustLive(e.freed, "defer_free")

	if e.enabled {
		e.idle.Stop()
		e.enabled = false
	}
	e.freed = true

	log.Trace("defer_free")

	if e.destroy != nil {
		e.destroy()
	}
}

func (e *deferEvent) SetDestroy(cb func()) {
	mustLive(e.freed, "defer_set_destroy")
	e.destroy = cb
}

func mustLive(freed bool, op string) {
	if freed {
		panic("pulse: " + op + " called on a freed event")
	}
}
