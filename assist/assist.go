// Package assist turns the recent conversation into a single on-demand
// prompt and collects the streamed answer into a saved turn.
package assist

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"earshot/audio"
	"earshot/log"
	"earshot/transcript"
)

const (
	// How far back the conversation context reaches.
	ContextLookback = 10 * time.Minute

	// Word budget for the rendered context block.
	WordBudget = 1000

	// Number of trailing interviewer statements highlighted as the
	// question to answer.
	FocusStatements = 3

	// A response that has not completed by then is abandoned.
	ResponseTimeout = 30 * time.Second

	// Context stored alongside a saved turn.
	turnLookback = 60 * time.Second

	// Screenshots smaller than this are likely capture failures.
	minImageBytes = 1000
)

var (
	ErrAlreadyInFlight = errors.New("response already in flight")
	ErrInvalidInput    = errors.New("invalid input")
)

// Turn is one question/answer exchange.
type Turn struct {
	Time          time.Time
	Transcription string
	Response      string
}

// SavedTurn pairs a completed turn with its session and nearby context.
type SavedTurn struct {
	SessionID string
	Turn      Turn
	History   []transcript.Entry
}

// Sender ships a prompt upstream. Satisfied by session.Manager.
type Sender interface {
	SendText(text, role string) error
	SendImage(data []byte, mime string) error
}

// Callbacks surface orchestrator activity to the UI.
type Callbacks struct {
	OnFragment func(text string)
	OnComplete func(turn Turn)
	OnSaved    func(saved SavedTurn)
	OnStatus   func(msg string)
}

// Orchestrator triggers at most one response at a time and assembles
// the streamed fragments. Safe for concurrent use.
type Orchestrator struct {
	mu sync.Mutex

	sender Sender
	logbk  *transcript.Log
	cb     Callbacks
	now    func() time.Time

	sessionID string
	awaiting  bool
	buffer    strings.Builder
	started   time.Time
	timer     *time.Timer
	history   []SavedTurn

	timeout time.Duration
}

func New(sender Sender, logbk *transcript.Log, cb Callbacks) *Orchestrator {
	return &Orchestrator{
		sender:  sender,
		logbk:   logbk,
		cb:      cb,
		now:     time.Now,
		timeout: ResponseTimeout,
	}
}

// StartSession tags saved turns with the session id and clears turn history.
func (o *Orchestrator) StartSession(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessionID = id
	o.history = nil
}

// Trigger requests a response for the recent conversation. Only one
// request may be in flight.
func (o *Orchestrator) Trigger() error {
	return o.trigger(nil, "")
}

// TriggerWithImage additionally attaches a screenshot. Images below a
// sanity threshold are rejected.
func (o *Orchestrator) TriggerWithImage(image []byte, mime string) error {
	if len(image) < minImageBytes {
		return fmt.Errorf("%w: image too small (%d bytes)", ErrInvalidInput, len(image))
	}
	return o.trigger(image, mime)
}

func (o *Orchestrator) trigger(image []byte, mime string) error {
	o.mu.Lock()
	if o.awaiting {
		o.mu.Unlock()
		return ErrAlreadyInFlight
	}
	now := o.now()
	prompt := o.buildPrompt(now)
	o.awaiting = true
	o.buffer.Reset()
	o.started = now
	o.timer = time.AfterFunc(o.timeout, o.handleTimeout)
	o.mu.Unlock()

	o.status("Generating response...")
	if image != nil {
		if err := o.sender.SendImage(image, mime); err != nil {
			o.abort()
			return err
		}
	}
	if err := o.sender.SendText(prompt, "user"); err != nil {
		o.abort()
		return err
	}
	log.Info("response requested")
	return nil
}

// buildPrompt renders the conversation context plus the question focus.
// Caller holds o.mu.
func (o *Orchestrator) buildPrompt(now time.Time) string {
	entries := o.logbk.Recent(ContextLookback)

	var b strings.Builder
	if ctx := transcript.FormatContext(entries, now, WordBudget); ctx != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}

	var focus []string
	for i := len(entries) - 1; i >= 0 && len(focus) < FocusStatements; i-- {
		if entries[i].Source == audio.SourceInterviewer {
			focus = append([]string{entries[i].Text}, focus...)
		}
	}
	if len(focus) > 0 {
		b.WriteString("Most recent question to focus on:\n")
		b.WriteString(strings.Join(focus, "\n"))
		b.WriteString("\n\n")
	}
	b.WriteString("Answer the most recent question on behalf of the interviewee. Be concise and specific.")
	return b.String()
}

// HandleFragment appends a streamed fragment. Fragments arriving with
// no request in flight are discarded.
func (o *Orchestrator) HandleFragment(text string) {
	o.mu.Lock()
	if !o.awaiting {
		o.mu.Unlock()
		return
	}
	o.buffer.WriteString(text)
	o.mu.Unlock()
	if o.cb.OnFragment != nil {
		o.cb.OnFragment(text)
	}
}

// HandleComplete finalizes the in-flight response, if any.
func (o *Orchestrator) HandleComplete() {
	o.mu.Lock()
	if !o.awaiting {
		o.mu.Unlock()
		return
	}
	o.awaiting = false
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	text := strings.TrimSpace(o.buffer.String())
	o.buffer.Reset()
	if text == "" {
		o.mu.Unlock()
		o.status("Empty response")
		return
	}
	turn := Turn{Time: o.now(), Transcription: o.turnTranscription(), Response: text}
	saved := SavedTurn{
		SessionID: o.sessionID,
		Turn:      turn,
		History:   o.logbk.Recent(turnLookback),
	}
	o.history = append(o.history, saved)
	o.mu.Unlock()

	if o.cb.OnComplete != nil {
		o.cb.OnComplete(turn)
	}
	if o.cb.OnSaved != nil {
		o.cb.OnSaved(saved)
	}
	o.status("Response ready")
	log.Info("response complete")
}

// turnTranscription summarizes what was asked. Caller holds o.mu.
func (o *Orchestrator) turnTranscription() string {
	entries := o.logbk.Recent(turnLookback)
	var lines []string
	for _, e := range entries {
		lines = append(lines, transcript.Speaker(e.Source)+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}

func (o *Orchestrator) handleTimeout() {
	o.mu.Lock()
	if !o.awaiting {
		o.mu.Unlock()
		return
	}
	o.awaiting = false
	o.timer = nil
	o.buffer.Reset()
	o.mu.Unlock()
	o.status("Response timed out")
	log.Warn("response timed out")
}

func (o *Orchestrator) abort() {
	o.mu.Lock()
	o.awaiting = false
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.buffer.Reset()
	o.mu.Unlock()
}

// Awaiting reports whether a response is currently in flight.
func (o *Orchestrator) Awaiting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.awaiting
}

// Turns returns the saved turns of the current session, oldest first.
func (o *Orchestrator) Turns() []SavedTurn {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]SavedTurn, len(o.history))
	copy(out, o.history)
	return out
}

// Reset abandons any in-flight response and clears the turn history.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.awaiting = false
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.buffer.Reset()
	o.history = nil
	o.mu.Unlock()
}

func (o *Orchestrator) status(msg string) {
	if o.cb.OnStatus != nil {
		o.cb.OnStatus(msg)
	}
}
