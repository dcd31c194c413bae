package audio

import "time"

const (
	// SendTarget is how much accepted audio accumulates before a flush.
	SendTarget = 2 * time.Second
	// SendTimeout forces a flush of a non-empty send buffer even when
	// voice activity is sparse, bounding end-to-end latency.
	SendTimeout = 3 * time.Second
)

// Aggregator buffers one source's capture callbacks in two stages:
// arbitrary-size callback data accumulates until full analysis windows
// can be sliced off (stage 1), and windows the router accepted for
// forwarding accumulate into duration-bounded send units (stage 2).
//
// Each source owns its own Aggregator; it is driven from a single
// pipeline goroutine and is not safe for concurrent use.
type Aggregator struct {
	source Source

	buf  []float32 // stage 1
	send []float32 // stage 2

	targetSamples int
	lastFlush     time.Time
}

func NewAggregator(source Source, now time.Time) *Aggregator {
	return &Aggregator{
		source:        source,
		targetSamples: int(SendTarget/time.Second) * SampleRate,
		lastFlush:     now,
	}
}

func (a *Aggregator) Source() Source { return a.source }

// Push appends captured samples and returns any complete analysis windows.
func (a *Aggregator) Push(samples []float32) [][]float32 {
	a.buf = append(a.buf, samples...)

	var windows [][]float32
	for len(a.buf) >= WindowSamples {
		win := make([]float32, WindowSamples)
		copy(win, a.buf[:WindowSamples])
		a.buf = a.buf[WindowSamples:]
		windows = append(windows, win)
	}
	return windows
}

// Accept appends a router-approved window to the send buffer.
func (a *Aggregator) Accept(win []float32) {
	a.send = append(a.send, win...)
}

// FlushDue reports whether the send buffer should be flushed now,
// either because it reached the target duration or because the send
// timeout elapsed since the last flush.
func (a *Aggregator) FlushDue(now time.Time) bool {
	if len(a.send) == 0 {
		return false
	}
	return len(a.send) >= a.targetSamples || now.Sub(a.lastFlush) >= SendTimeout
}

// Flush returns the buffered send unit and resets the buffer and the
// timeout clock together. Returns nil when nothing is buffered.
func (a *Aggregator) Flush(now time.Time) []float32 {
	if len(a.send) == 0 {
		a.lastFlush = now
		return nil
	}
	out := a.send
	a.send = nil
	a.lastFlush = now
	return out
}

// Pending returns the number of samples waiting in the send buffer.
func (a *Aggregator) Pending() int { return len(a.send) }

// Reset drops both stages, for session resets.
func (a *Aggregator) Reset(now time.Time) {
	a.buf = nil
	a.send = nil
	a.lastFlush = now
}
