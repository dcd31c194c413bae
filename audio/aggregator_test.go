package audio

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPushSlicesWindows(t *testing.T) {
	a := NewAggregator(SourceInterviewee, t0)

	// Less than a window: nothing comes out.
	if got := a.Push(make([]float32, WindowSamples-1)); got != nil {
		t.Fatalf("premature windows: %d", len(got))
	}
	// One more sample completes the first window.
	got := a.Push(make([]float32, 1))
	if len(got) != 1 || len(got[0]) != WindowSamples {
		t.Fatalf("got %d windows", len(got))
	}
	// A large push yields several windows and keeps the remainder.
	got = a.Push(make([]float32, WindowSamples*3+10))
	if len(got) != 3 {
		t.Fatalf("got %d windows, want 3", len(got))
	}
}

func TestFlushAtTargetDuration(t *testing.T) {
	a := NewAggregator(SourceInterviewer, t0)
	target := int(SendTarget/time.Second) * SampleRate

	win := make([]float32, WindowSamples)
	for accepted := 0; accepted+WindowSamples < target; accepted += WindowSamples {
		a.Accept(win)
		if a.FlushDue(t0.Add(time.Second)) {
			t.Fatalf("flush due at %d of %d samples", accepted+WindowSamples, target)
		}
	}
	a.Accept(win)
	if !a.FlushDue(t0.Add(time.Second)) {
		t.Fatal("flush not due at target duration")
	}
	out := a.Flush(t0.Add(time.Second))
	if len(out) < target {
		t.Fatalf("flushed %d samples, want >= %d", len(out), target)
	}
	if a.Pending() != 0 {
		t.Fatalf("pending = %d after flush", a.Pending())
	}
}

func TestFlushOnTimeout(t *testing.T) {
	a := NewAggregator(SourceInterviewer, t0)
	a.Accept(make([]float32, WindowSamples))

	if a.FlushDue(t0.Add(SendTimeout - time.Millisecond)) {
		t.Fatal("flush due before timeout")
	}
	if !a.FlushDue(t0.Add(SendTimeout)) {
		t.Fatal("flush not due at timeout")
	}
}

func TestEmptyBufferNeverDue(t *testing.T) {
	a := NewAggregator(SourceInterviewer, t0)
	if a.FlushDue(t0.Add(time.Hour)) {
		t.Fatal("empty send buffer reported due")
	}
}

func TestFlushResetsTimeoutClock(t *testing.T) {
	a := NewAggregator(SourceInterviewer, t0)
	a.Accept(make([]float32, WindowSamples))

	flushAt := t0.Add(SendTimeout)
	a.Flush(flushAt)
	a.Accept(make([]float32, WindowSamples))
	if a.FlushDue(flushAt.Add(SendTimeout - time.Millisecond)) {
		t.Fatal("timeout clock not reset by flush")
	}
	if !a.FlushDue(flushAt.Add(SendTimeout)) {
		t.Fatal("flush not due one timeout after previous flush")
	}
}

func TestResetDropsBothStages(t *testing.T) {
	a := NewAggregator(SourceInterviewee, t0)
	a.Push(make([]float32, WindowSamples/2))
	a.Accept(make([]float32, WindowSamples))
	a.Reset(t0.Add(time.Second))

	if a.Pending() != 0 {
		t.Fatalf("pending = %d after reset", a.Pending())
	}
	// Stage 1 was cleared too: a half window does not complete.
	if got := a.Push(make([]float32, WindowSamples/2)); got != nil {
		t.Fatalf("stale stage 1 data survived reset: %d windows", len(got))
	}
}
