package main

import (
	"earshot/assist"
	"earshot/audio"
	"earshot/session"
	"earshot/transcript"
)

// EventSink abstracts the display layer so the Bubble Tea TUI and the
// headless test mode receive the same pipeline events.
type EventSink interface {
	Status(text string)
	SessionState(state session.State)
	SourceChanged(source audio.Source)
	TranscriptUpdate(update transcript.Update)
	ResponseFragment(text string)
	ResponseComplete(text string)
	TurnSaved(saved assist.SavedTurn)
	AudioLevel(source audio.Source, level float64)
	QuietWarning(on bool)
}
