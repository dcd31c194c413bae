// Package vad decides, from raw audio energy alone, whether a source is
// speaking and which of the two conversation sources holds the floor.
package vad

import (
	"math"

	"earshot/audio"
)

// silenceAmplitude is the fixed per-sample amplitude below which a
// sample counts toward the silence ratio. It is independent of the
// per-source RMS thresholds.
const silenceAmplitude = 0.005

// Config holds per-source voice detection thresholds. The speaker
// source carries stricter defaults than the microphone because ambient
// playback energy runs higher than close-mic speech at the same
// perceptual loudness.
type Config struct {
	Threshold         float64 // minimum RMS for voice
	MaxSilencePercent float64 // maximum silent-sample ratio for voice
}

var (
	InterviewerConfig = Config{Threshold: 0.01, MaxSilencePercent: 80}
	IntervieweeConfig = Config{Threshold: 0.003, MaxSilencePercent: 85}
)

func ConfigFor(source audio.Source) Config {
	if source == audio.SourceInterviewer {
		return InterviewerConfig
	}
	return IntervieweeConfig
}

// Stats are the raw block measurements behind a voice decision.
type Stats struct {
	Min            float64
	Max            float64
	Mean           float64
	RMS            float64
	SilencePercent float64
	Samples        int
}

// Result is the per-window voice decision. Ephemeral; never stored.
type Result struct {
	HasVoice       bool
	Confidence     float64 // [0,1]
	RMS            float64
	SilencePercent float64 // [0,100]
	Source         audio.Source
}

// Measure computes block statistics. Pure; deterministic for equal input.
func Measure(samples []float32) Stats {
	st := Stats{Min: math.Inf(1), Max: math.Inf(-1), Samples: len(samples)}
	if len(samples) == 0 {
		return Stats{}
	}

	var sum, sumSq float64
	silent := 0
	for _, s := range samples {
		v := float64(s)
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
		sum += v
		sumSq += v * v
		if math.Abs(v) < silenceAmplitude {
			silent++
		}
	}
	st.Mean = sum / float64(len(samples))
	st.RMS = math.Sqrt(sumSq / float64(len(samples)))
	st.SilencePercent = 100 * float64(silent) / float64(len(samples))
	return st
}

// Analyze runs voice detection on one block under the given config.
// Confidence is a saturating linear score: it stops growing at 5x the
// threshold so one loud source cannot always win arbitration.
func Analyze(block audio.Block, cfg Config) Result {
	st := Measure(block.Samples)

	hasVoice := st.RMS > cfg.Threshold && st.SilencePercent < cfg.MaxSilencePercent

	confidence := 0.0
	if hasVoice {
		normalized := math.Min(st.RMS/cfg.Threshold, 10)
		confidence = math.Min(normalized*0.2, 1.0)
	}

	return Result{
		HasVoice:       hasVoice,
		Confidence:     confidence,
		RMS:            st.RMS,
		SilencePercent: st.SilencePercent,
		Source:         block.Source,
	}
}
