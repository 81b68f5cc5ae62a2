package store

import (
	"sync"
	"time"
)

// DefaultThroughputWindow is how many one-second samples are kept.
const DefaultThroughputWindow = 60

// Sample is the traffic observed during one sampling interval.
type Sample struct {
	Time     time.Time `json:"time"`
	Received uint64    `json:"received"`
	Sent     uint64    `json:"sent"`
}

// Total is Received + Sent.
func (s Sample) Total() uint64 {
	return s.Received + s.Sent
}

// Throughput turns successive counter snapshots into a rolling history of
// per-interval deltas.
type Throughput struct {
	window int

	mu      sync.Mutex
	last    Counters
	samples []Sample
}

// NewThroughput keeps the last window samples (DefaultThroughputWindow if
// window <= 0).
func NewThroughput(window int) *Throughput {
	if window <= 0 {
		window = DefaultThroughputWindow
	}
	return &Throughput{window: window}
}

// Record computes the delta from the previous snapshot and appends it. A
// snapshot lower than the previous one means the counters were cleared;
// the delta is then taken from zero.
func (t *Throughput) Record(at time.Time, now Counters) Sample {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Received < t.last.Received || now.Sent < t.last.Sent {
		t.last = Counters{}
	}
	s := Sample{
		Time:     at,
		Received: now.Received - t.last.Received,
		Sent:     now.Sent - t.last.Sent,
	}
	t.last = now

	t.samples = append(t.samples, s)
	if over := len(t.samples) - t.window; over > 0 {
		t.samples = append(t.samples[:0], t.samples[over:]...)
	}
	return s
}

// Samples returns the history, oldest first.
func (t *Throughput) Samples() []Sample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sample(nil), t.samples...)
}

// Rate is the total of the most recent sample, in messages per interval.
func (t *Throughput) Rate() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.samples) == 0 {
		return 0
	}
	return t.samples[len(t.samples)-1].Total()
}
