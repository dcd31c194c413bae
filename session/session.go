// Package session manages the lifecycle of a live transcription session:
// connect, stream, reconnect with context replay, and close.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"earshot/log"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyInitializing = errors.New("session already initializing")
	ErrSessionClosed       = errors.New("session closed")
	ErrNotConnected        = errors.New("session not connected")
)

// Params holds everything needed to (re)open a session. Retained across
// reconnects, discarded on auth failure or explicit close.
type Params struct {
	APIKey       string
	CustomPrompt string
	Profile      string
	Language     string
}

// Events are callbacks a backend fires as server traffic arrives.
// All callbacks may be invoked from the backend's read goroutine.
type Events struct {
	OnTranscription    func(text string)
	OnResponseFragment func(text string)
	OnResponseComplete func()
	OnTurnComplete     func()
	OnError            func(msg string)
	OnClose            func(reason string)
}

// Backend is an open upstream connection.
type Backend interface {
	SendAudio(data []byte, mime string) error
	SendText(text, role string) error
	SendImage(data []byte, mime string) error
	Close() error
}

// ConnectFunc opens a backend. Injected so tests run without a network.
type ConnectFunc func(p Params, ev Events) (Backend, error)

// Handlers are the manager's outward-facing callbacks.
type Handlers struct {
	OnState            func(State)
	OnStatus           func(msg string)
	OnTranscription    func(text string)
	OnResponseFragment func(text string)
	OnResponseComplete func()
	OnTurnComplete     func()
	// ReplayContext returns the conversation so far, replayed into a
	// fresh connection after a successful reconnect. Empty skips replay.
	ReplayContext func() string
}

const (
	maxReconnectAttempts = 3
	reconnectDelay       = 2 * time.Second
)

var authFailurePhrases = []string{
	"api key not valid",
	"invalid api key",
	"authentication failed",
	"unauthorized",
}

func isAuthFailure(msg string) bool {
	m := strings.ToLower(msg)
	for _, p := range authFailurePhrases {
		if strings.Contains(m, p) {
			return true
		}
	}
	return false
}

// Manager drives the session state machine over an injected ConnectFunc.
type Manager struct {
	mu sync.Mutex

	connect  ConnectFunc
	handlers Handlers

	state    State
	params   *Params
	backend  Backend
	attempts int
	gen      int

	maxAttempts int
	retryDelay  time.Duration
}

func NewManager(connect ConnectFunc, h Handlers) *Manager {
	return &Manager{
		connect:     connect,
		handlers:    h,
		state:       StateIdle,
		maxAttempts: maxReconnectAttempts,
		retryDelay:  reconnectDelay,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// setState must be called with m.mu held. The handler runs unlocked.
func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	cb := m.handlers.OnState
	m.mu.Unlock()
	if cb != nil {
		cb(s)
	}
	m.mu.Lock()
}

func (m *Manager) status(msg string) {
	if m.handlers.OnStatus != nil {
		m.handlers.OnStatus(msg)
	}
}

// Initialize opens a new session. A second call while one is in flight
// returns ErrAlreadyInitializing; a call on an open session replaces it.
func (m *Manager) Initialize(p Params) error {
	m.mu.Lock()
	if m.state == StateInitializing || m.state == StateReconnecting {
		m.mu.Unlock()
		return ErrAlreadyInitializing
	}
	if m.backend != nil {
		m.backend.Close()
		m.backend = nil
	}
	m.params = &p
	m.attempts = 0
	m.gen++
	gen := m.gen
	m.setState(StateInitializing)
	m.mu.Unlock()

	m.status("Initializing session...")
	b, err := m.connect(p, m.events(gen))
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		if b != nil {
			b.Close()
		}
		return ErrSessionClosed
	}
	if err != nil {
		log.Errorf("session connect: %v", err)
		if isAuthFailure(err.Error()) {
			m.params = nil
			m.attempts = m.maxAttempts
			m.setState(StateClosed)
			m.status("Invalid API key")
			return err
		}
		m.setState(StateIdle)
		return err
	}
	m.backend = b
	m.setState(StateConnected)
	m.status("Session connected")
	log.Info("session connected")
	return nil
}

// events builds the backend callbacks for connection generation gen.
// Stale generations are ignored so a replaced connection cannot
// disturb its successor.
func (m *Manager) events(gen int) Events {
	live := func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return gen == m.gen
	}
	return Events{
		OnTranscription: func(text string) {
			if live() && m.handlers.OnTranscription != nil {
				m.handlers.OnTranscription(text)
			}
		},
		OnResponseFragment: func(text string) {
			if live() && m.handlers.OnResponseFragment != nil {
				m.handlers.OnResponseFragment(text)
			}
		},
		OnResponseComplete: func() {
			if live() && m.handlers.OnResponseComplete != nil {
				m.handlers.OnResponseComplete()
			}
		},
		OnTurnComplete: func() {
			if live() && m.handlers.OnTurnComplete != nil {
				m.handlers.OnTurnComplete()
			}
		},
		OnError: func(msg string) {
			if !live() {
				return
			}
			log.Errorf("session error: %s", msg)
			if isAuthFailure(msg) {
				m.failAuth()
			}
		},
		OnClose: func(reason string) {
			if !live() {
				return
			}
			m.handleClose(reason)
		},
	}
}

func (m *Manager) failAuth() {
	m.mu.Lock()
	m.params = nil
	m.attempts = m.maxAttempts
	if m.backend != nil {
		m.backend.Close()
		m.backend = nil
	}
	m.gen++
	m.setState(StateClosed)
	m.mu.Unlock()
	m.status("Invalid API key")
}

// handleClose reacts to an unexpected connection drop.
func (m *Manager) handleClose(reason string) {
	log.Warnf("session closed: %s", reason)
	if isAuthFailure(reason) {
		m.failAuth()
		return
	}
	m.mu.Lock()
	if m.state != StateConnected || m.params == nil {
		m.mu.Unlock()
		return
	}
	m.backend = nil
	if m.attempts >= m.maxAttempts {
		m.setState(StateClosed)
		m.mu.Unlock()
		m.status("Session closed")
		return
	}
	m.setState(StateReconnecting)
	m.mu.Unlock()
	go m.reconnectLoop()
}

// reconnectLoop retries the connection until it succeeds or the attempt
// budget is exhausted. Runs on its own goroutine.
func (m *Manager) reconnectLoop() {
	for {
		m.mu.Lock()
		if m.state != StateReconnecting || m.params == nil {
			m.mu.Unlock()
			return
		}
		if m.attempts >= m.maxAttempts {
			m.setState(StateClosed)
			m.mu.Unlock()
			m.status("Session closed")
			return
		}
		m.attempts++
		attempt := m.attempts
		p := *m.params
		m.gen++
		gen := m.gen
		delay := m.retryDelay
		m.mu.Unlock()

		m.status("Reconnecting...")
		log.Warnf("reconnect attempt %d/%d", attempt, m.maxAttempts)
		time.Sleep(delay)

		b, err := m.connect(p, m.events(gen))
		m.mu.Lock()
		if gen != m.gen || m.state != StateReconnecting {
			m.mu.Unlock()
			if b != nil {
				b.Close()
			}
			return
		}
		if err != nil {
			log.Errorf("reconnect attempt %d: %v", attempt, err)
			if isAuthFailure(err.Error()) {
				m.mu.Unlock()
				m.failAuth()
				return
			}
			m.mu.Unlock()
			continue
		}
		m.backend = b
		m.attempts = 0
		m.setState(StateConnected)
		m.mu.Unlock()

		m.status("Session reconnected")
		log.Info("session reconnected")
		if m.handlers.ReplayContext != nil {
			if ctx := m.handlers.ReplayContext(); ctx != "" {
				if err := b.SendText("Conversation so far:\n"+ctx, "user"); err != nil {
					log.Errorf("context replay: %v", err)
				}
			}
		}
		return
	}
}

func (m *Manager) currentBackend() (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return nil, ErrSessionClosed
	}
	if m.state != StateConnected || m.backend == nil {
		return nil, ErrNotConnected
	}
	return m.backend, nil
}

func (m *Manager) SendAudio(data []byte, mime string) error {
	b, err := m.currentBackend()
	if err != nil {
		return err
	}
	return b.SendAudio(data, mime)
}

func (m *Manager) SendText(text, role string) error {
	b, err := m.currentBackend()
	if err != nil {
		return err
	}
	return b.SendText(text, role)
}

func (m *Manager) SendImage(data []byte, mime string) error {
	b, err := m.currentBackend()
	if err != nil {
		return err
	}
	return b.SendImage(data, mime)
}

// Close tears the session down and forgets the stored params.
func (m *Manager) Close() {
	m.mu.Lock()
	m.params = nil
	m.attempts = 0
	m.gen++
	if m.backend != nil {
		m.backend.Close()
		m.backend = nil
	}
	m.setState(StateClosed)
	m.mu.Unlock()
	m.status("Session closed")
	log.Info("session closed by user")
}
