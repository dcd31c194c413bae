package vad

import "time"

const (
	TickInterval = 100 * time.Millisecond

	quietWarnEvery   = 8 * time.Second
	voiceMinRatio    = 0.10
	voiceClearRatio  = 0.25 // higher threshold to clear warning (hysteresis)
	monitorWindowDur = 30 * time.Second
)

type QuietEvent int

const (
	QuietNone   QuietEvent = iota
	QuietWarn              // no voice detected on either source
	QuietClear             // speech resumed after warning
	QuietRepeat            // periodic re-warn while still quiet
)

// Monitor watches aggregate voice activity and raises a warning when
// the conversation has gone quiet, with hysteresis so a single voiced
// tick does not clear it. Tick is expected every TickInterval.
type Monitor struct {
	warnAt   int
	windowSz int

	ticks    int
	window   []bool
	warned   bool
	lastWarn int
}

func NewMonitor() *Monitor {
	warnAt := int(quietWarnEvery / TickInterval)
	windowSz := int(monitorWindowDur / TickInterval)
	return &Monitor{
		warnAt:   warnAt,
		windowSz: windowSz,
		window:   make([]bool, windowSz),
	}
}

func (m *Monitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *Monitor) Tick(hasVoice bool) QuietEvent {
	m.window[m.ticks%m.windowSz] = hasVoice
	m.ticks++

	r := m.ratio(m.warnAt)

	if m.ticks >= m.warnAt && r < voiceMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return QuietWarn
	}
	if m.warned && r >= voiceClearRatio {
		m.warned = false
		return QuietClear
	}
	if m.warned && m.ticks-m.lastWarn >= m.warnAt {
		m.lastWarn = m.ticks
		return QuietRepeat
	}
	return QuietNone
}

func (m *Monitor) Reset() {
	m.ticks = 0
	m.warned = false
	m.lastWarn = 0
	for i := range m.window {
		m.window[i] = false
	}
}
