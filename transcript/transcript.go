// Package transcript keeps the attributed conversation history. Incoming
// transcription text carries no speaker label, so entries are attributed by
// majority vote over the audio sends that preceded them.
package transcript

import (
	"sort"
	"strings"
	"sync"
	"time"

	"earshot/audio"
)

const (
	// Retention window for the conversation history.
	Retention = 4 * time.Minute

	// Audio sends older than this no longer vote on attribution.
	voteWindow = 5 * time.Second

	// Bounded queue of recent sends used for attribution.
	sendQueueCap = 50
)

// Entry is one attributed line of the conversation.
type Entry struct {
	Time      time.Time
	Text      string
	Source    audio.Source
	SessionID string
}

// Update is delivered to the observer after every accepted entry.
type Update struct {
	Entry   Entry
	History []Entry
	Label   string
}

type sendRecord struct {
	source audio.Source
	at     time.Time
	bytes  int
}

// Log records audio sends and attributes transcription text to a source.
// Safe for concurrent use.
type Log struct {
	mu sync.Mutex

	now       func() time.Time
	sessionID string
	entries   []Entry
	sends     []sendRecord
	lastSrc   audio.Source
	onUpdate  func(Update)
}

func New(onUpdate func(Update)) *Log {
	return &Log{
		now:      time.Now,
		lastSrc:  audio.SourceInterviewer,
		onUpdate: onUpdate,
	}
}

// StartSession tags subsequent entries with the given session id.
func (l *Log) StartSession(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = id
}

// RecordSend notes that audio from source was shipped upstream. The record
// votes on the attribution of transcription text arriving shortly after.
func (l *Log) RecordSend(source audio.Source, bytes int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sends = append(l.sends, sendRecord{source: source, at: l.now(), bytes: bytes})
	l.lastSrc = source
	if len(l.sends) > sendQueueCap {
		l.sends = append(l.sends[:0], l.sends[len(l.sends)-sendQueueCap:]...)
	}
}

// Add attributes and stores a transcription fragment. Blank fragments are
// dropped. Returns the stored entry and whether it was kept.
func (l *Log) Add(text string) (Entry, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, false
	}

	l.mu.Lock()
	now := l.now()
	src := l.vote(now)
	e := Entry{Time: now, Text: text, Source: src, SessionID: l.sessionID}
	l.entries = append(l.entries, e)
	l.prune(now)
	history := l.snapshot()
	cb := l.onUpdate
	l.mu.Unlock()

	if cb != nil {
		cb(Update{Entry: e, History: history, Label: speakerLabel(src)})
	}
	return e, true
}

// vote picks the source with the most audio sends inside the vote window.
// Ties go to the most recently sent source; with no recent sends the last
// sent source carries over, regardless of window. Caller holds l.mu.
func (l *Log) vote(now time.Time) audio.Source {
	cutoff := now.Add(-voteWindow)
	counts := map[audio.Source]int{}
	var latest audio.Source
	var latestAt time.Time
	for _, s := range l.sends {
		if s.at.Before(cutoff) {
			continue
		}
		counts[s.source]++
		if s.at.After(latestAt) || latestAt.IsZero() {
			latest = s.source
			latestAt = s.at
		}
	}
	if len(counts) == 0 {
		return l.lastSrc
	}
	a, b := audio.SourceInterviewer, audio.SourceInterviewee
	switch {
	case counts[a] > counts[b]:
		return a
	case counts[b] > counts[a]:
		return b
	default:
		return latest
	}
}

// Recent returns entries newer than the window, oldest first.
func (l *Log) Recent(window time.Duration) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-window)
	var out []Entry
	for _, e := range l.entries {
		if !e.Time.Before(cutoff) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// LastSource reports the source of the most recent audio send.
func (l *Log) LastSource() audio.Source {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSrc
}

func (l *Log) prune(now time.Time) {
	cutoff := now.Add(-Retention)
	i := 0
	for i < len(l.entries) && l.entries[i].Time.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.entries = append(l.entries[:0], l.entries[i:]...)
	}
}

func (l *Log) snapshot() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Reset drops all history and pending attribution state.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.sends = nil
	l.lastSrc = audio.SourceInterviewer
}
