package vad

import (
	"testing"
	"time"

	"earshot/audio"
)

// level produces one analysis window at a constant amplitude, giving a
// block whose RMS equals the amplitude with zero silent samples.
func level(amp float64) []float32 {
	out := make([]float32, audio.WindowSamples)
	for i := range out {
		out[i] = float32(amp)
	}
	return out
}

func silence() []float32 {
	return make([]float32, audio.WindowSamples)
}

func newTestRouter() (*Router, *time.Time) {
	r := NewRouter(nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, &now
}

func routeAt(r *Router, now *time.Time, src audio.Source, samples []float32) Decision {
	return r.Route(audio.Block{Source: src, Samples: samples, Time: *now, SampleRate: audio.SampleRate})
}

func TestFirstVoicedSourceTakesFloor(t *testing.T) {
	r, now := newTestRouter()
	d := routeAt(r, now, audio.SourceInterviewer, level(0.05))
	if !d.Forward {
		t.Fatal("first voiced block not forwarded")
	}
	if d.ActiveSource != audio.SourceInterviewer {
		t.Fatalf("active = %q", d.ActiveSource)
	}
}

func TestSilenceNeverForwarded(t *testing.T) {
	r, now := newTestRouter()
	if d := routeAt(r, now, audio.SourceInterviewer, silence()); d.Forward {
		t.Fatal("silent block forwarded")
	}
	if r.Active() != "" {
		t.Fatalf("silence took the floor: %q", r.Active())
	}
}

func TestIncumbentSilentBlockNotForwarded(t *testing.T) {
	r, now := newTestRouter()
	routeAt(r, now, audio.SourceInterviewer, level(0.05))
	*now = now.Add(audio.WindowDuration)

	d := routeAt(r, now, audio.SourceInterviewer, silence())
	if d.Forward {
		t.Fatal("incumbent's silent block forwarded")
	}
	if d.ActiveSource != audio.SourceInterviewer {
		t.Fatal("silent block cost the incumbent the floor")
	}
}

func TestStickyIncumbent(t *testing.T) {
	r, now := newTestRouter()
	// Strong incumbent: recent mean confidence 1.0.
	for i := 0; i < 5; i++ {
		routeAt(r, now, audio.SourceInterviewer, level(0.06))
		*now = now.Add(audio.WindowDuration)
	}
	*now = now.Add(time.Second) // past the cooldown

	d := routeAt(r, now, audio.SourceInterviewee, level(0.06))
	if d.ActiveSource != audio.SourceInterviewer {
		t.Fatal("strong incumbent lost the floor")
	}
	if d.Forward {
		t.Fatal("challenger forwarded while incumbent strong")
	}
}

func TestChallengerWinsOverWeakIncumbent(t *testing.T) {
	r, now := newTestRouter()
	// Weak incumbent: RMS 0.02 gives confidence 0.4, below 0.5.
	for i := 0; i < 5; i++ {
		routeAt(r, now, audio.SourceInterviewer, level(0.02))
		*now = now.Add(audio.WindowDuration)
	}
	*now = now.Add(time.Second)

	d := routeAt(r, now, audio.SourceInterviewee, level(0.05))
	if d.ActiveSource != audio.SourceInterviewee {
		t.Fatalf("challenger did not take the floor, active = %q", d.ActiveSource)
	}
	if !d.Forward {
		t.Fatal("winning challenger not forwarded")
	}
}

func TestSwitchCooldown(t *testing.T) {
	r, now := newTestRouter()
	// Weak incumbent at t0.
	routeAt(r, now, audio.SourceInterviewer, level(0.02))

	// 50ms later the challenger qualifies but the cooldown holds the
	// floor. The voiced block is still forwarded.
	*now = now.Add(50 * time.Millisecond)
	d := routeAt(r, now, audio.SourceInterviewee, level(0.05))
	if d.ActiveSource != audio.SourceInterviewer {
		t.Fatal("switch happened inside cooldown")
	}
	if !d.Forward {
		t.Fatal("qualified challenger block dropped during cooldown")
	}

	// After the cooldown the same challenger takes the floor.
	*now = now.Add(200 * time.Millisecond)
	d = routeAt(r, now, audio.SourceInterviewee, level(0.05))
	if d.ActiveSource != audio.SourceInterviewee {
		t.Fatal("challenger never took the floor after cooldown")
	}
}

func TestNoTwoSwitchesWithinCooldown(t *testing.T) {
	r, now := newTestRouter()
	switches := 0

	prev := audio.Source("")
	src := audio.SourceInterviewer
	for i := 0; i < 10; i++ {
		// Alternate sources every 40ms; the interviewer stays weak so
		// the interviewee always qualifies as a challenger.
		d := routeAt(r, now, src, level(0.02))
		if d.ActiveSource != prev {
			if prev != "" {
				switches++
			}
			prev = d.ActiveSource
		}
		src = src.Other()
		*now = now.Add(40 * time.Millisecond)
	}
	// 10 blocks over 360ms with a 200ms cooldown allow at most 2
	// switches after the initial floor grab.
	if switches > 2 {
		t.Fatalf("switches = %d within cooldown budget", switches)
	}
}

func TestMicGateDropsInterviewee(t *testing.T) {
	r, now := newTestRouter()
	r.SetMicEnabled(false)

	d := routeAt(r, now, audio.SourceInterviewee, level(0.06))
	if d.Forward || d.VAD.HasVoice {
		t.Fatal("gated mic block was analyzed or forwarded")
	}
	if r.Active() != "" {
		t.Fatal("gated mic block took the floor")
	}

	r.SetMicEnabled(true)
	if d := routeAt(r, now, audio.SourceInterviewee, level(0.06)); !d.Forward {
		t.Fatal("mic block dropped after re-enable")
	}
}

func TestVoiceWithin(t *testing.T) {
	r, now := newTestRouter()
	routeAt(r, now, audio.SourceInterviewer, level(0.05))
	if !r.VoiceWithin(time.Second) {
		t.Fatal("recent voice not seen")
	}
	*now = now.Add(1500 * time.Millisecond)
	if r.VoiceWithin(time.Second) {
		t.Fatal("stale voice still seen")
	}
}

func TestResetClearsFloor(t *testing.T) {
	r, now := newTestRouter()
	routeAt(r, now, audio.SourceInterviewer, level(0.05))
	r.Reset()
	if r.Active() != "" {
		t.Fatal("floor survived reset")
	}
	// A new source takes the floor immediately, no cooldown carryover.
	d := routeAt(r, now, audio.SourceInterviewee, level(0.05))
	if d.ActiveSource != audio.SourceInterviewee {
		t.Fatal("floor not taken after reset")
	}
}

func TestSwitchCallbackFires(t *testing.T) {
	got := make(chan audio.Source, 2)
	r := NewRouter(func(s audio.Source) { got <- s })
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Route(audio.Block{Source: audio.SourceInterviewer, Samples: level(0.05), SampleRate: audio.SampleRate})
	select {
	case s := <-got:
		if s != audio.SourceInterviewer {
			t.Fatalf("switch callback got %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("switch callback never fired")
	}
}
