package loop

import (
	"container/heap"
	"time"
)

// Timer invokes a callback once after a timeout, then optionally every repeat interval.
type Timer struct {
	loop   *Loop
	cb     func()
	due    time.Time
	repeat time.Duration
	seq    uint64
	gen    uint64
	index  int
}

// NewTimer creates an unarmed timer.
func (l *Loop) NewTimer() *Timer {
	return &Timer{loop: l, index: -1}
}

// Start arms the timer, replacing any pending expiry. A negative timeout is treated as zero.
func (t *Timer) Start(cb func(), timeout, repeat time.Duration) {
	t.Stop()

	if timeout < 0 {
		timeout = 0
	}

	t.cb = cb
	t.repeat = repeat
	t.due = time.Now().Add(timeout)
	t.gen++
	t.push()
}

// Stop disarms the timer.
func (t *Timer) Stop() {
	t.gen++
	if t.index < 0 {
		return
	}

	heap.Remove(&t.loop.timers, t.index)
}

// Active reports whether the timer is armed.
func (t *Timer) Active() bool {
	return t.index >= 0
}

// Due returns the time of the next expiry.
func (t *Timer) Due() time.Time {
	return t.due
}

func (t *Timer) push() {
	t.loop.seq++
	t.seq = t.loop.seq
	heap.Push(&t.loop.timers, t)
}

type expiry struct {
	t   *Timer
	gen uint64
}

func (l *Loop) runTimers(now time.Time) {
	var expired []expiry
	for len(l.timers) > 0 && !l.timers[0].due.After(now) {
		t := heap.Pop(&l.timers).(*Timer)
		expired = append(expired, expiry{t, t.gen})

		if t.repeat > 0 {
			t.due = now.Add(t.repeat)
			t.push()
		}
	}

	for _, e := range expired {
		// A callback that ran earlier may have restarted or stopped this timer.
		if e.t.gen != e.gen {
			continue
		}

		e.t.cb()
	}
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}

	return h[i].due.Before(h[j].due)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]

	return t
}
