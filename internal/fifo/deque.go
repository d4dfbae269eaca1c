package fifo

import "github.com/roach88/markout/internal/ir"

// lotDeque is a ring-buffer double-ended queue of open lots.
//
// Exits consume the front lot in place: Front returns a pointer into the
// buffer so partial fills decrement Remaining without a pop and re-push.
// Not safe for concurrent use; a deque belongs to one group.
type lotDeque struct {
	buf  []ir.Lot
	head int
	n    int
}

func newLotDeque() *lotDeque {
	return &lotDeque{buf: make([]ir.Lot, 16)}
}

// PushBack appends a lot, growing the buffer when full.
func (q *lotDeque) PushBack(l ir.Lot) {
	if q.n == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.n)%len(q.buf)] = l
	q.n++
}

// Front returns the oldest lot. The deque must not be empty.
func (q *lotDeque) Front() *ir.Lot {
	return &q.buf[q.head]
}

// PopFront removes the oldest lot.
func (q *lotDeque) PopFront() ir.Lot {
	l := q.buf[q.head]
	// Clear the slot so the decimal's big.Int can be collected.
	q.buf[q.head] = ir.Lot{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	if q.n == 0 {
		q.head = 0
	}
	return l
}

// Len returns the number of open lots.
func (q *lotDeque) Len() int {
	return q.n
}

// Total returns the summed remaining quantity of all lots.
func (q *lotDeque) Total() int64 {
	var t int64
	for i := 0; i < q.n; i++ {
		t += q.buf[(q.head+i)%len(q.buf)].Remaining
	}
	return t
}

// Drain removes and returns all lots, oldest first.
func (q *lotDeque) Drain() []ir.Lot {
	out := make([]ir.Lot, 0, q.n)
	for q.n > 0 {
		out = append(out, q.PopFront())
	}
	return out
}

func (q *lotDeque) grow() {
	buf := make([]ir.Lot, len(q.buf)*2)
	for i := 0; i < q.n; i++ {
		buf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = buf
	q.head = 0
}
