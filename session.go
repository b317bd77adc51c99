package voicebridge

import (
	"strings"
	"sync"
	"time"

	"github.com/bt-bridge/voicebridge/actions"
	"github.com/bt-bridge/voicebridge/shared"
	"github.com/bt-bridge/voicebridge/store"
)

type Phase int

const (
	PhaseInitializing Phase = iota
	PhaseAwaitingStart
	PhaseActive
	PhaseDraining
	PhaseClosed
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseAwaitingStart:
		return "awaiting_start"
	case PhaseActive:
		return "active"
	case PhaseDraining:
		return "draining"
	case PhaseClosed:
		return "closed"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

type Role string

const (
	RoleCaller    Role = "caller"
	RoleAssistant Role = "assistant"
)

type TranscriptTurn struct {
	Role Role
	Text string
	At   time.Time
}

// TerminationRequest records why the session is ending. The first request
// wins; later requests are ignored.
type TerminationRequest struct {
	Status     store.CallStatus
	Reason     actions.EndReason
	TransferTo string
}

// Session is the shared state of one call. Both relays and the lifecycle
// controller read and write it under a single mutex; each field has one
// logical writer.
type Session struct {
	mu sync.Mutex

	phase       Phase
	streamSid   string
	callSid     string
	caller      string
	callee      string
	startedAt   time.Time
	turns       []TranscriptTurn
	actions     []string
	audioClock  time.Duration // enqueued playout of the current response
	termination *TerminationRequest

	ready     chan struct{}
	readyOnce sync.Once
}

func NewSession() *Session {
	return &Session{
		phase: PhaseInitializing,
		ready: make(chan struct{}),
	}
}

// Begin captures the stream identity from the start frame and opens the
// session-ready gate. It is write-once: a second start frame is rejected.
func (s *Session) Begin(streamSid, callSid, caller, callee string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamSid != "" {
		return shared.ErrStreamAlreadyStarted
	}
	s.streamSid = streamSid
	s.callSid = callSid
	s.caller = caller
	s.callee = callee
	s.startedAt = time.Now()
	s.phase = PhaseActive
	s.readyOnce.Do(func() { close(s.ready) })
	return nil
}

// Ready is closed once the start frame has been seen. The outbound relay
// blocks on it so no model audio is framed before the stream ID exists.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) StreamSid() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSid
}

func (s *Session) CallInfo() (callSid, caller, callee string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callSid, s.caller, s.callee
}

func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSid != ""
}

func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

// AppendTurn records one finalized utterance. Only completed transcriptions
// land here; deltas never touch the session.
func (s *Session) AppendTurn(role Role, text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, TranscriptTurn{Role: role, Text: text, At: time.Now()})
}

// Transcript renders the conversation so far, one line per turn.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for i, turn := range s.turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch turn.Role {
		case RoleCaller:
			b.WriteString("Caller: ")
		case RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(turn.Text)
	}
	return b.String()
}

func (s *Session) Turns() []TranscriptTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TranscriptTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// RecordAction notes that an action ran during this call. Repeats of the
// same action name collapse to one entry.
func (s *Session) RecordAction(name actions.ActionName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.actions {
		if a == string(name) {
			return
		}
	}
	s.actions = append(s.actions, string(name))
}

func (s *Session) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.actions))
	copy(out, s.actions)
	return out
}

// AddAudio advances the playout clock of the current response.
func (s *Session) AddAudio(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioClock += d
}

// ResetAudioClock starts a fresh playout clock when a new response begins or
// the caller barges in.
func (s *Session) ResetAudioClock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioClock = 0
}

func (s *Session) AudioClock() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioClock
}

// RequestTermination files the reason the call is ending. Returns true if
// this request won; the first request is never overwritten.
func (s *Session) RequestTermination(req *TerminationRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.termination != nil {
		return false
	}
	s.termination = req
	return true
}

func (s *Session) Termination() *TerminationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.termination
}
