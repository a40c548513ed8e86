package qml

// Entry is one element of an operation queue: either an operation or a
// measurement process.
type Entry struct {
	Op          *Operation
	Measurement *Measurement
}

// Token returns the correlation token of the entry.
func (e Entry) Token() int {
	if e.Op != nil {
		return e.Op.Token
	}
	if e.Measurement != nil {
		return e.Measurement.Token
	}
	return NoToken
}

// Wires returns every wire the entry touches.
func (e Entry) Wires() []int {
	if e.Op != nil {
		return e.Op.AllWires()
	}
	if e.Measurement != nil {
		return e.Measurement.MeasuredWires()
	}
	return nil
}

// Queue is the ordered record of everything a circuit queued during one
// execution.
type Queue struct {
	Entries []Entry
}

// AppendOp queues an operation.
func (q *Queue) AppendOp(op *Operation) {
	q.Entries = append(q.Entries, Entry{Op: op})
}

// AppendMeasurement queues a measurement process.
func (q *Queue) AppendMeasurement(m *Measurement) {
	q.Entries = append(q.Entries, Entry{Measurement: m})
}

// Remove drops the given operation (by identity) from the queue. It
// reports whether the operation was found. Used when an operation becomes
// owned by another object, such as the observable of a measurement.
func (q *Queue) Remove(op *Operation) bool {
	for i := len(q.Entries) - 1; i >= 0; i-- {
		if q.Entries[i].Op == op {
			q.Entries = append(q.Entries[:i], q.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Ops returns the queued operations in order.
func (q *Queue) Ops() []Operation {
	var ops []Operation
	for _, e := range q.Entries {
		if e.Op != nil {
			ops = append(ops, *e.Op)
		}
	}
	return ops
}

// TerminalMeasurements returns the measurement processes at the tail of
// the queue, in queue order. The backward scan stops at the first
// operation, so a mid-circuit measurement is a boundary.
func (q *Queue) TerminalMeasurements() []Measurement {
	start := len(q.Entries)
	for start > 0 && q.Entries[start-1].Measurement != nil {
		start--
	}
	out := make([]Measurement, 0, len(q.Entries)-start)
	for _, e := range q.Entries[start:] {
		out = append(out, *e.Measurement)
	}
	return out
}

// NumWires returns one more than the largest wire index any entry
// touches, and at least 1.
func (q *Queue) NumWires() int {
	n := 1
	for _, e := range q.Entries {
		for _, w := range e.Wires() {
			n = max(n, w+1)
		}
	}
	return n
}

// ByToken groups queue entries by correlation token, keeping queue order
// within each group.
func (q *Queue) ByToken() map[int][]Entry {
	groups := make(map[int][]Entry)
	for _, e := range q.Entries {
		groups[e.Token()] = append(groups[e.Token()], e)
	}
	return groups
}
