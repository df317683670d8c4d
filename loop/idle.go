package loop

// Idle runs its callback once per loop iteration while active.
// An active idle handle makes poll return immediately.
type Idle struct {
	loop   *Loop
	cb     func()
	active bool
}

// NewIdle creates an inactive idle handle.
func (l *Loop) NewIdle() *Idle {
	return &Idle{loop: l}
}

// Start activates the handle. Starting an active handle only replaces the callback.
func (h *Idle) Start(cb func()) {
	h.cb = cb

	if !h.active {
		h.active = true
		h.loop.idles = append(h.loop.idles, h)
	}
}

// Stop deactivates the handle.
func (h *Idle) Stop() {
	if !h.active {
		return
	}

	h.active = false
	for i, q := range h.loop.idles {
		if q == h {
			h.loop.idles = append(h.loop.idles[:i], h.loop.idles[i+1:]...)

			break
		}
	}
}

// Active reports whether the handle is running.
func (h *Idle) Active() bool {
	return h.active
}
