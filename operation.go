package pulse

// operation is a pending request awaiting its terminal event.
type operation struct {
	id       uint64
	name     string
	items    []any
	complete func(op *operation, ev event)
}

// operations is an arena of pending requests keyed by id.
// An entry lives from request issue until its terminal event, or until the owner abandons it.
type operations struct {
	next    uint64
	pending map[uint64]*operation
}

func (o *operations) add(name string, complete func(op *operation, ev event)) *operation {
	if o.pending == nil {
		o.pending = make(map[uint64]*operation)
	}

	o.next++
	op := &operation{id: o.next, name: name, complete: complete}
	o.pending[op.id] = op

	return op
}

func (o *operations) get(id uint64) *operation {
	return o.pending[id]
}

func (o *operations) take(id uint64) *operation {
	op := o.pending[id]
	delete(o.pending, id)

	return op
}

func (o *operations) remove(id uint64) {
	delete(o.pending, id)
}

// abandon drops every pending request without completing it and returns how many there were.
func (o *operations) abandon() int {
	n := len(o.pending)
	o.pending = nil

	return n
}

func (o *operations) len() int {
	return len(o.pending)
}
