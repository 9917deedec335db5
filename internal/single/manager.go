// Package single runs the solo variant: one session per connection, with the
// Questioner role played by the external arbiter. Sessions are fully
// independent of each other and of all rooms; the only suspension point in
// the whole server is the arbiter call made here, and it never holds a lock.
package single

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyunwoo-s/soupgame/internal/arbiter"
	"github.com/hyunwoo-s/soupgame/internal/models"
	"github.com/hyunwoo-s/soupgame/internal/protocol"
)

const (
	aiAuthorID = "AI_HOST"
	aiNickname = "AI Host"

	welcomeText = "The game has started. Ask your first question!"
	hintText    = "Hint: focus on what the situation leaves unsaid."
)

// Session is the per-connection solo game state. epoch distinguishes a
// session from any later session on the same connection, so an arbiter
// verdict that outlives its session can be discarded instead of reviving it.
type Session struct {
	ConnID    string
	Scenario  models.Scenario
	Messages  []models.Message
	HintsLeft int
	Status    models.RoomStatus

	epoch  int64
	ctx    context.Context
	cancel context.CancelFunc
}

// StartPayload is the single_game_started event body. The scenario inside it
// is redacted; the solution only ships at game over.
type StartPayload struct {
	Scenario  models.Scenario `json:"scenario"`
	HintsLeft int             `json:"hintsLeft"`
}

// GameOverPayload is the single_game_over event body.
type GameOverPayload struct {
	Win      bool   `json:"win"`
	Solution string `json:"solution"`
}

// HintsPayload is the single_hints_update event body.
type HintsPayload struct {
	HintsLeft int `json:"hintsLeft"`
}

// Manager owns the connection-id → Session map.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	epochSeq int64

	arb        arbiter.Arbiter
	draw       func() models.Scenario
	hintBudget int
	timeout    time.Duration
	log        *logrus.Logger
}

// NewManager builds an empty session manager.
func NewManager(log *logrus.Logger, arb arbiter.Arbiter, draw func() models.Scenario, hintBudget int, timeout time.Duration) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		arb:        arb,
		draw:       draw,
		hintBudget: hintBudget,
		timeout:    timeout,
		log:        log,
	}
}

// Start creates (or replaces) the connection's session with a fresh catalog
// scenario and emits the start event plus a system welcome message.
func (m *Manager) Start(conn *protocol.Conn) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if old, ok := m.sessions[conn.ID]; ok {
		old.cancel()
	}
	m.epochSeq++
	s := &Session{
		ConnID:    conn.ID,
		Scenario:  m.draw(),
		HintsLeft: m.hintBudget,
		Status:    models.StatusPlaying,
		epoch:     m.epochSeq,
		ctx:       ctx,
		cancel:    cancel,
	}
	m.sessions[conn.ID] = s

	welcome := models.NewMessage("", aiNickname, welcomeText, models.KindSystem)
	s.Messages = append(s.Messages, welcome)
	start := StartPayload{Scenario: s.Scenario.Redacted(), HintsLeft: s.HintsLeft}
	m.mu.Unlock()

	m.log.WithField("conn", conn.ID).Info("single-player game started")
	conn.Send(protocol.ServerEvent{Type: protocol.EvSingleGameStarted, Data: start})
	conn.Send(protocol.ServerEvent{Type: protocol.EvSingleMessage, Data: welcome})
}

// Chat appends the player's question and hands it to the arbiter. The
// arbiter runs in its own goroutine so the connection keeps processing
// events (including leave) while the model thinks; the session epoch guards
// delivery of the eventual verdict.
func (m *Manager) Chat(conn *protocol.Conn, text string) error {
	if text == "" {
		return protocol.Validation("message is required")
	}

	m.mu.Lock()
	s, ok := m.sessions[conn.ID]
	if !ok || s.Status != models.StatusPlaying {
		m.mu.Unlock()
		return protocol.Precondition("no game in progress")
	}
	question := models.NewMessage(conn.ID, "You", text, models.KindQuestion)
	s.Messages = append(s.Messages, question)
	epoch := s.epoch
	sessionCtx := s.ctx
	scenario := s.Scenario
	m.mu.Unlock()

	conn.Send(protocol.ServerEvent{Type: protocol.EvSingleMessage, Data: question})

	go func() {
		ctx, cancel := context.WithTimeout(sessionCtx, m.timeout)
		defer cancel()

		verdict, err := m.arb.Judge(ctx, text, scenario)
		if err != nil {
			// The game never hard-fails on an AI outage.
			m.log.WithField("conn", conn.ID).WithError(err).Warn("arbiter call failed, degrading to SKIP")
			verdict = models.VerdictSkip
		}
		m.deliver(conn, epoch, question.ID, verdict)
	}()
	return nil
}

// deliver applies an arbiter verdict to the session, unless the session was
// deleted or replaced while the arbiter was thinking.
func (m *Manager) deliver(conn *protocol.Conn, epoch, questionID int64, verdict models.Verdict) {
	m.mu.Lock()
	s, ok := m.sessions[conn.ID]
	if !ok || s.epoch != epoch || s.Status != models.StatusPlaying {
		m.mu.Unlock()
		return
	}

	if verdict == models.VerdictCorrect {
		answer := models.NewAnswer(aiAuthorID, aiNickname, models.VerdictYes, questionID)
		s.Messages = append(s.Messages, answer)
		s.Status = models.StatusFinished
		over := GameOverPayload{Win: true, Solution: s.Scenario.Solution}
		m.mu.Unlock()

		conn.Send(protocol.ServerEvent{Type: protocol.EvSingleMessage, Data: answer})
		conn.Send(protocol.ServerEvent{Type: protocol.EvSingleGameOver, Data: over})
		return
	}

	answer := models.NewAnswer(aiAuthorID, aiNickname, verdict, questionID)
	s.Messages = append(s.Messages, answer)
	m.mu.Unlock()

	conn.Send(protocol.ServerEvent{Type: protocol.EvSingleMessage, Data: answer})
}

// RequestHint spends one hint and emits the updated budget.
func (m *Manager) RequestHint(conn *protocol.Conn) error {
	m.mu.Lock()
	s, ok := m.sessions[conn.ID]
	if !ok || s.Status != models.StatusPlaying {
		m.mu.Unlock()
		return protocol.Precondition("no game in progress")
	}
	if s.HintsLeft <= 0 {
		m.mu.Unlock()
		return protocol.Precondition("no hints left")
	}
	s.HintsLeft--
	hint := models.NewMessage(aiAuthorID, aiNickname, hintText, models.KindHint)
	s.Messages = append(s.Messages, hint)
	left := s.HintsLeft
	m.mu.Unlock()

	conn.Send(protocol.ServerEvent{Type: protocol.EvSingleMessage, Data: hint})
	conn.Send(protocol.ServerEvent{Type: protocol.EvSingleHintsUpdate, Data: HintsPayload{HintsLeft: left}})
	return nil
}

// Leave deletes the connection's session unconditionally and cancels any
// in-flight arbiter call. Safe to call repeatedly and on disconnect.
func (m *Manager) Leave(connID string) {
	m.mu.Lock()
	s, ok := m.sessions[connID]
	if ok {
		s.cancel()
		delete(m.sessions, connID)
	}
	m.mu.Unlock()
	if ok {
		m.log.WithField("conn", connID).Info("single-player session removed")
	}
}

// Session returns the connection's session, or nil. Intended for tests and
// diagnostics; the returned pointer must not be mutated.
func (m *Manager) Session(connID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[connID]
}
