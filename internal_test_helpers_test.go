package iridiumsbd

import "time"

// fakeClock is a deterministic Clock: each call to Now advances by a
// fixed step from a base time, so transmit_time/log timestamps are
// reproducible in tests.
type fakeClock struct {
	base time.Time
	step time.Duration
	n    int
}

func (c *fakeClock) Now() time.Time {
	t := c.base.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// sequenceRand replays a fixed sequence of Intn results, cycling once
// exhausted, so jitter/signal sampling/session rolls are reproducible.
type sequenceRand struct {
	seq []int
	i   int
}

func (r *sequenceRand) Intn(n int) int {
	if len(r.seq) == 0 {
		return 0
	}
	v := r.seq[r.i%len(r.seq)]
	r.i++
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// noSleep is injected in place of time.Sleep so jitter/long waits
// complete instantly in tests.
func noSleep(time.Duration) {}
