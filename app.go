package main

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"earshot/assist"
	"earshot/audio"
	"earshot/log"
	"earshot/session"
	"earshot/transcript"
	"earshot/vad"
)

// App wires the two capture pipelines into the router, the session
// manager, the transcript and the response orchestrator.
type App struct {
	cfg  *Config
	sink EventSink

	router  *vad.Router
	manager *session.Manager
	logbk   *transcript.Log
	assist  *assist.Orchestrator

	pipelines map[audio.Source]*pipeline

	mu         sync.Mutex
	sessionID  string
	micEnabled bool
	response   []string

	quietStop chan struct{}
	closeOnce sync.Once
}

func NewApp(cfg *Config, sink EventSink) *App {
	return newApp(cfg, sink, session.ConnectGemini)
}

func newApp(cfg *Config, sink EventSink, connect session.ConnectFunc) *App {
	a := &App{
		cfg:        cfg,
		sink:       sink,
		pipelines:  map[audio.Source]*pipeline{},
		micEnabled: true,
		quietStop:  make(chan struct{}),
	}

	a.router = vad.NewRouter(func(s audio.Source) {
		log.SourceSwitch(string(s.Other()), string(s))
		sink.SourceChanged(s)
	})

	a.logbk = transcript.New(func(u transcript.Update) {
		log.ConversationLine(transcript.Speaker(u.Entry.Source), u.Entry.Text)
		sink.TranscriptUpdate(u)
	})

	a.manager = session.NewManager(connect, session.Handlers{
		OnState:  sink.SessionState,
		OnStatus: sink.Status,
		OnTranscription: func(text string) {
			a.logbk.Add(text)
		},
		OnResponseFragment: func(text string) {
			a.assist.HandleFragment(text)
		},
		OnResponseComplete: func() {
			a.assist.HandleComplete()
		},
		OnTurnComplete: func() {
			a.assist.HandleComplete()
		},
		ReplayContext: func() string {
			entries := a.logbk.Recent(assist.ContextLookback)
			return transcript.FormatContext(entries, time.Now(), assist.WordBudget)
		},
	})

	a.assist = assist.New(a.manager, a.logbk, assist.Callbacks{
		OnFragment: func(text string) {
			a.mu.Lock()
			a.response = append(a.response, text)
			a.mu.Unlock()
			sink.ResponseFragment(text)
		},
		OnComplete: func(turn assist.Turn) {
			sink.ResponseComplete(turn.Response)
		},
		OnSaved: func(saved assist.SavedTurn) {
			log.TurnSaved(saved.SessionID, len(strings.Fields(saved.Turn.Response)), len(saved.History))
			sink.TurnSaved(saved)
		},
		OnStatus: sink.Status,
	})

	for _, src := range []audio.Source{audio.SourceInterviewer, audio.SourceInterviewee} {
		a.pipelines[src] = newPipeline(src, a)
	}
	return a
}

// Start opens the session and begins draining both pipelines.
func (a *App) Start() error {
	a.mu.Lock()
	a.sessionID = uuid.NewString()
	id := a.sessionID
	a.mu.Unlock()

	a.logbk.StartSession(id)
	a.assist.StartSession(id)
	log.SessionStart(id, "gemini-live")

	if err := a.manager.Initialize(a.cfg.sessionParams()); err != nil {
		return err
	}
	for _, p := range a.pipelines {
		p.start()
	}
	go a.quietWatch()
	return nil
}

// Ingest accepts raw capture bytes for one source. Called from capture
// callbacks; never blocks.
func (a *App) Ingest(source audio.Source, data []byte) {
	if p, ok := a.pipelines[source]; ok {
		p.ingest(data)
	}
}

// sendAudio ships one flushed send unit upstream. Fire-and-forget: the
// pipeline goroutine must not stall on the network.
func (a *App) sendAudio(source audio.Source, samples []float32) {
	pcm := audio.EncodePCM16(samples)
	a.logbk.RecordSend(source, len(pcm))
	dur := float64(len(samples)) / float64(audio.SampleRate)
	go func() {
		if err := a.manager.SendAudio(pcm, audio.MimePCM); err != nil {
			log.Errorf("audio send (%s): %v", source, err)
			return
		}
		log.AudioSend(string(source), len(pcm), dur)
	}()
}

// ToggleMic flips the interviewee gate and reports the new state.
func (a *App) ToggleMic() bool {
	a.mu.Lock()
	a.micEnabled = !a.micEnabled
	on := a.micEnabled
	a.mu.Unlock()
	a.router.SetMicEnabled(on)
	if on {
		a.sink.Status("Microphone enabled")
	} else {
		a.sink.Status("Microphone muted")
	}
	return on
}

// TriggerAssist requests a response for the recent conversation.
func (a *App) TriggerAssist() {
	a.mu.Lock()
	a.response = a.response[:0]
	a.mu.Unlock()
	if err := a.assist.Trigger(); err != nil {
		a.sink.Status(err.Error())
	}
}

// TriggerAssistWithImage requests a response with a screenshot attached.
// The image is sent to the model ahead of the prompt.
func (a *App) TriggerAssistWithImage(jpeg []byte) {
	a.mu.Lock()
	a.response = a.response[:0]
	a.mu.Unlock()
	if err := a.assist.TriggerWithImage(jpeg, "image/jpeg"); err != nil {
		a.sink.Status(err.Error())
	}
}

// ResponseText returns the accumulated response fragments.
func (a *App) ResponseText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := ""
	for _, f := range a.response {
		out += f
	}
	return out
}

// Reset clears conversation state and reinitializes the session so the
// model starts from a blank context.
func (a *App) Reset() {
	a.logbk.Reset()
	a.assist.Reset()
	a.router.Reset()
	now := time.Now()
	for _, p := range a.pipelines {
		p.reset(now)
	}

	a.mu.Lock()
	a.sessionID = uuid.NewString()
	id := a.sessionID
	a.response = a.response[:0]
	a.mu.Unlock()

	a.logbk.StartSession(id)
	a.assist.StartSession(id)
	a.sink.Status("Conversation reset")
	log.Info("conversation reset")

	go func() {
		a.manager.Close()
		if err := a.manager.Initialize(a.cfg.sessionParams()); err != nil {
			log.Errorf("session restart: %v", err)
		}
	}()
}

// quietWatch samples voice activity and surfaces prolonged quiet.
func (a *App) quietWatch() {
	mon := vad.NewMonitor()
	ticker := time.NewTicker(vad.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.quietStop:
			return
		case <-ticker.C:
		}
		switch mon.Tick(a.router.VoiceWithin(vad.TickInterval * 2)) {
		case vad.QuietWarn, vad.QuietRepeat:
			a.sink.QuietWarning(true)
			log.Warn("no voice activity detected")
		case vad.QuietClear:
			a.sink.QuietWarning(false)
		}
	}
}

// Close stops the pipelines and tears the session down.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		close(a.quietStop)
		for _, p := range a.pipelines {
			p.halt()
		}
		a.manager.Close()
		a.mu.Lock()
		id := a.sessionID
		a.mu.Unlock()
		entries := len(a.logbk.Recent(transcript.Retention))
		log.SessionEnd(id, entries)
	})
}
