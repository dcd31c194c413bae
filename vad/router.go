package vad

import (
	"sync"
	"time"

	"earshot/audio"
)

const (
	activityWindow = 2 * time.Second
	switchCooldown = 200 * time.Millisecond

	// A challenger needs at least this confidence, and the incumbent's
	// recent mean below incumbentWeak, to take the floor.
	challengerMin = 0.1
	incumbentWeak = 0.5

	// recentVoiced is how many trailing voiced samples the incumbent's
	// mean confidence is computed over.
	recentVoiced = 5
)

// Decision is the routing outcome for one block.
type Decision struct {
	Forward      bool
	ActiveSource audio.Source // "" when no speaker has been heard yet
	VAD          Result
}

type activitySample struct {
	at         time.Time
	hasVoice   bool
	confidence float64
}

// Router arbitrates which of the two sources is speaking. It is a
// low-latency heuristic, not a classifier: the source holding the
// floor keeps it while voiced, and switches are rate-limited by a
// cooldown to stop mid-sentence oscillation.
type Router struct {
	mu sync.Mutex

	now      func() time.Time
	onSwitch func(audio.Source)

	activity   map[audio.Source][]activitySample
	current    audio.Source
	lastSwitch time.Time
	micEnabled bool
}

// NewRouter creates a router. onSwitch, when non-nil, is notified of
// active-source changes on a separate goroutine so it can never block
// the audio path.
func NewRouter(onSwitch func(audio.Source)) *Router {
	return &Router{
		now:      time.Now,
		onSwitch: onSwitch,
		activity: map[audio.Source][]activitySample{
			audio.SourceInterviewer: nil,
			audio.SourceInterviewee: nil,
		},
		micEnabled: true,
	}
}

// SetMicEnabled gates interviewee blocks. While disabled they are
// dropped before analysis and never influence arbitration.
func (r *Router) SetMicEnabled(on bool) {
	r.mu.Lock()
	r.micEnabled = on
	r.mu.Unlock()
}

// Active returns the current speaker, or "" if none yet.
func (r *Router) Active() audio.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// VoiceWithin reports whether any source had a voiced block in the
// trailing duration d.
func (r *Router) VoiceWithin(d time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-d)
	for _, samples := range r.activity {
		for i := len(samples) - 1; i >= 0; i-- {
			if samples[i].at.Before(cutoff) {
				break
			}
			if samples[i].hasVoice {
				return true
			}
		}
	}
	return false
}

// Route analyzes one block and decides whether it is forwarded to the
// transport. Forwarding requires voice in this block even when its
// source already holds the floor: silent blocks from the incumbent are
// never transmitted.
func (r *Router) Route(block audio.Block) Decision {
	r.mu.Lock()

	if block.Source == audio.SourceInterviewee && !r.micEnabled {
		d := Decision{ActiveSource: r.current}
		r.mu.Unlock()
		return d
	}

	vad := Analyze(block, ConfigFor(block.Source))
	now := r.now()

	r.activity[block.Source] = append(r.activity[block.Source], activitySample{
		at:         now,
		hasVoice:   vad.HasVoice,
		confidence: vad.Confidence,
	})
	r.prune(block.Source, now)

	activate := r.shouldActivate(vad)

	var switched audio.Source
	if activate && r.current != block.Source && now.Sub(r.lastSwitch) >= switchCooldown {
		r.current = block.Source
		r.lastSwitch = now
		switched = block.Source
	}

	d := Decision{
		Forward:      vad.HasVoice && activate,
		ActiveSource: r.current,
		VAD:          vad,
	}
	r.mu.Unlock()

	if switched != "" && r.onSwitch != nil {
		go r.onSwitch(switched)
	}
	return d
}

// shouldActivate is called with r.mu held.
func (r *Router) shouldActivate(vad Result) bool {
	if !vad.HasVoice {
		return false
	}
	if r.current == "" {
		return true
	}
	// Sticky incumbent: an active source keeps priority while voiced.
	if r.current == vad.Source {
		return true
	}
	// Challenger wins only when the incumbent has gone comparatively weak.
	return vad.Confidence > challengerMin && r.recentMean(vad.Source.Other()) < incumbentWeak
}

// recentMean averages the confidence of a source's last recentVoiced
// voiced samples. Called with r.mu held.
func (r *Router) recentMean(source audio.Source) float64 {
	samples := r.activity[source]
	sum, n := 0.0, 0
	for i := len(samples) - 1; i >= 0 && n < recentVoiced; i-- {
		if !samples[i].hasVoice {
			continue
		}
		sum += samples[i].confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// prune drops activity older than the trailing window. Called with r.mu held.
func (r *Router) prune(source audio.Source, now time.Time) {
	samples := r.activity[source]
	cutoff := now.Add(-activityWindow)
	i := 0
	for i < len(samples) && samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		r.activity[source] = append(samples[:0:0], samples[i:]...)
	}
}

// Reset clears arbitration state for a fresh session.
func (r *Router) Reset() {
	r.mu.Lock()
	for s := range r.activity {
		r.activity[s] = nil
	}
	r.current = ""
	r.lastSwitch = time.Time{}
	r.mu.Unlock()
}
