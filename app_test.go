package main

import (
	"sync"
	"testing"

	"earshot/assist"
	"earshot/audio"
	"earshot/session"
	"earshot/transcript"
)

type recordSink struct {
	mu    sync.Mutex
	saved []assist.SavedTurn
	done  []string
}

func (s *recordSink) Status(string)                      {}
func (s *recordSink) SessionState(session.State)         {}
func (s *recordSink) SourceChanged(audio.Source)         {}
func (s *recordSink) TranscriptUpdate(transcript.Update) {}
func (s *recordSink) ResponseFragment(string)            {}
func (s *recordSink) AudioLevel(audio.Source, float64)   {}
func (s *recordSink) QuietWarning(bool)                  {}

func (s *recordSink) ResponseComplete(text string) {
	s.mu.Lock()
	s.done = append(s.done, text)
	s.mu.Unlock()
}

func (s *recordSink) TurnSaved(saved assist.SavedTurn) {
	s.mu.Lock()
	s.saved = append(s.saved, saved)
	s.mu.Unlock()
}

type stubBackend struct {
	ev    session.Events
	texts []string
}

func (b *stubBackend) SendAudio([]byte, string) error { return nil }
func (b *stubBackend) SendImage([]byte, string) error { return nil }
func (b *stubBackend) Close() error                   { return nil }

func (b *stubBackend) SendText(text, role string) error {
	b.texts = append(b.texts, text)
	return nil
}

func TestCompletedTurnReachesSink(t *testing.T) {
	sink := &recordSink{}
	var backend *stubBackend
	connect := func(p session.Params, ev session.Events) (session.Backend, error) {
		backend = &stubBackend{ev: ev}
		return backend, nil
	}

	app := newApp(&Config{APIKey: "key"}, sink, connect)
	if err := app.manager.Initialize(app.cfg.sessionParams()); err != nil {
		t.Fatal(err)
	}
	app.logbk.StartSession("sess-7")
	app.assist.StartSession("sess-7")

	backend.ev.OnTranscription("tell me about goroutines")
	app.TriggerAssist()
	backend.ev.OnResponseFragment("They are lightweight threads.")
	backend.ev.OnResponseComplete()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.saved) != 1 {
		t.Fatalf("expected 1 saved turn, got %d", len(sink.saved))
	}
	saved := sink.saved[0]
	if saved.SessionID != "sess-7" {
		t.Fatalf("session id: %q", saved.SessionID)
	}
	if saved.Turn.Response != "They are lightweight threads." {
		t.Fatalf("response: %q", saved.Turn.Response)
	}
	if len(saved.History) == 0 {
		t.Fatal("saved turn should carry the surrounding transcript")
	}
	if len(sink.done) != 1 || sink.done[0] != saved.Turn.Response {
		t.Fatalf("completion events: %+v", sink.done)
	}
}
