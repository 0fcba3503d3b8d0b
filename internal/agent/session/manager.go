// Package session runs the clarification loop on top of the agent graph.
// A request stays CLARIFYING while the analyzer asks questions and becomes
// RESOLVED once the agent has answered it; the next message starts a new
// request in the same conversation.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stockwise-ai/server/internal/agent/model"
	errx "github.com/stockwise-ai/server/internal/core/error"
	logx "github.com/stockwise-ai/server/pkg/logger"
)

// GiveUpMessage ends a request that needed too many clarifications.
const GiveUpMessage = "Too many clarifications needed. Please try rephrasing your query."

// DefaultIdleTimeout is how long a session without turns is remembered.
const DefaultIdleTimeout = 24 * time.Hour

const sweepInterval = time.Minute

type Phase string

const (
	PhaseClarifying Phase = "CLARIFYING"
	PhaseResolved   Phase = "RESOLVED"
)

// Runner runs one turn of the agent graph.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.TurnResult, error)
}

// Conversations is the part of the conversation store the manager writes to.
type Conversations interface {
	SaveResponse(ctx context.Context, conversationID string, content string, resolved bool) error
	Clear(ctx context.Context, conversationID string) error
}

// Status describes a session after its last turn.
type Status struct {
	Phase          Phase `json:"phase"`
	Clarifications int   `json:"clarifications"`
}

type state struct {
	mu sync.Mutex
	Status
	lastSeen time.Time
}

type Manager struct {
	runner            Runner
	conversations     Conversations
	maxClarifications int
	idleTimeout       time.Duration
	now               func() time.Time

	mu        sync.Mutex
	sessions  map[string]*state
	lastSweep time.Time
}

type Option func(*Manager)

// WithIdleTimeout forgets sessions that had no turn for d. d <= 0 keeps
// them until Reset.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a Manager. maxClarifications <= 0 disables the ceiling.
func NewManager(runner Runner, conversations Conversations, maxClarifications int, opts ...Option) *Manager {
	m := &Manager{
		runner:            runner,
		conversations:     conversations,
		maxClarifications: maxClarifications,
		idleTimeout:       DefaultIdleTimeout,
		now:               time.Now,
		sessions:          make(map[string]*state),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// session returns the state of id, creating it for a turn that is about to run.
func (m *Manager) session(id string) *state {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evictIdle(now)
	s, ok := m.sessions[id]
	if !ok {
		s = &state{Status: Status{Phase: PhaseClarifying}}
		m.sessions[id] = s
	}
	s.lastSeen = now
	return s
}

// evictIdle drops sessions idle for longer than idleTimeout. Sessions with a
// turn in flight are kept. Callers hold m.mu.
func (m *Manager) evictIdle(now time.Time) {
	if m.idleTimeout <= 0 || now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now
	for id, s := range m.sessions {
		if now.Sub(s.lastSeen) < m.idleTimeout || !s.mu.TryLock() {
			continue
		}
		delete(m.sessions, id)
		s.mu.Unlock()
		logx.Debug().Str("session_id", id).Msg("Idle session evicted")
	}
}

// Handle runs one user message through the agent. Turns of one session are
// serialized; distinct sessions run concurrently. A failed turn leaves the
// session as it was.
func (m *Manager) Handle(ctx context.Context, sessionID, text string) (*model.TurnResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errx.Validation(fmt.Errorf("session id is required"))
	}
	if strings.TrimSpace(text) == "" {
		return nil, errx.Validation(fmt.Errorf("message is required"))
	}

	s := m.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := m.runner.Invoke(ctx, model.QueryInput{ConversationID: sessionID, Query: text})
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("Agent turn failed")
		return nil, err
	}

	if res.Resolved {
		s.Phase = PhaseResolved
		s.Clarifications = 0
		return res, nil
	}

	s.Phase = PhaseClarifying
	s.Clarifications++
	if m.maxClarifications > 0 && s.Clarifications >= m.maxClarifications {
		logx.Warn().
			Str("session_id", sessionID).
			Int("clarifications", s.Clarifications).
			Msg("Clarification limit reached - giving up on request")
		if err := m.conversations.SaveResponse(ctx, sessionID, GiveUpMessage, true); err != nil {
			return nil, fmt.Errorf("save give-up response: %w", err)
		}
		s.Clarifications = 0
		res.Reply = GiveUpMessage
		res.GaveUp = true
	}
	return res, nil
}

// Converse drives one request to completion, calling ask for the answer to
// every clarification question.
func (m *Manager) Converse(
	ctx context.Context,
	sessionID, text string,
	ask func(ctx context.Context, question string) (string, error),
) (*model.TurnResult, error) {
	for {
		res, err := m.Handle(ctx, sessionID, text)
		if err != nil {
			return nil, err
		}
		if res.Resolved || res.GaveUp {
			return res, nil
		}
		if text, err = ask(ctx, res.Reply); err != nil {
			return nil, err
		}
	}
}

// Status returns the state of a session. Unknown sessions are CLARIFYING
// and are not created by asking.
func (m *Manager) Status(sessionID string) Status {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return Status{Phase: PhaseClarifying}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status
}

// Reset forgets the session and its conversation history.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if err := m.conversations.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	logx.Info().Str("session_id", sessionID).Msg("Session reset")
	return nil
}
