package engine

// Clock is a monotonic logical clock stamping trace events. Wall-clock
// time never orders anything in the engine; the sequence counter does.
//
// The engine is single-threaded by contract, so the counter is a plain
// int64.
type Clock struct {
	seq int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock { return &Clock{} }

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	c.seq++
	return c.seq
}

// Current returns the current sequence number without advancing.
func (c *Clock) Current() int64 { return c.seq }
