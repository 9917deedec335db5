// Package room implements the authoritative multiplayer engine: the room
// registry, membership and host handling, role/readiness gating, the game
// session state machine, and the message/guess protocol. All mutation of a
// room happens under its own mutex, validate → mutate → emit, so unrelated
// rooms proceed concurrently and no operation observes a partial update.
package room

import (
	"fmt"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hyunwoo-s/soupgame/internal/models"
	"github.com/hyunwoo-s/soupgame/internal/protocol"
)

// RoomStatus is the session state machine:
//
//	WAITING → (request_start sets pendingStart) → PLAYING → FINISHED → WAITING
//
// The status field itself only changes on scenario commit, game end, and
// reset; the pending-scenario phase is a flag on top of WAITING.
const (
	StatusWaiting  = models.StatusWaiting
	StatusPlaying  = models.StatusPlaying
	StatusFinished = models.StatusFinished
)

const (
	minPlayers = 2
	maxPlayers = 10

	latinNicknameMax = 16
	wideNicknameMax  = 10

	titleMax = 50
)

// validateTitle enforces the room-title bounds.
func validateTitle(title string) error {
	if title == "" {
		return protocol.Validation("room title is required")
	}
	if utf8.RuneCountInString(title) > titleMax {
		return protocol.Validation("room title is too long")
	}
	return nil
}

// Room owns its players, message log, and pending-guess queue. Nothing
// outside this package retains a reference into that state; every outbound
// payload is a copied snapshot.
type Room struct {
	mu sync.Mutex

	id         string
	title      string
	maxPlayers int
	password   string
	hostID     string
	status     models.RoomStatus

	players []*models.Player // join order; players[0] is the host after transfer
	conns   map[string]*protocol.Conn

	messages     []models.Message
	scenario     *models.Scenario
	hintsLeft    int
	winner       string
	startedAt    time.Time
	pendingStart bool

	guessQueue []models.PendingGuess
	guessSeq   int64

	hintBudget int
	maxGuesses int
}

// State is the full room snapshot broadcast to members.
type State struct {
	RoomID       string             `json:"roomId"`
	Title        string             `json:"title"`
	MaxPlayers   int                `json:"maxPlayers"`
	HasPassword  bool               `json:"hasPassword"`
	HostID       string             `json:"hostId"`
	Status       models.RoomStatus  `json:"status"`
	Players      []models.Player    `json:"players"`
	Messages     []models.Message   `json:"messages"`
	Scenario     *models.Scenario   `json:"scenario,omitempty"`
	HintsLeft    int                `json:"hintsLeft"`
	Winner       string             `json:"winner,omitempty"`
	StartedAt    int64              `json:"startTime,omitempty"`
	PendingStart bool               `json:"pendingStart"`
}

// Summary is the lobby-list view of a room. Passwords are redacted; only
// their presence is exposed.
type Summary struct {
	RoomID      string            `json:"roomId"`
	Title       string            `json:"title"`
	MaxPlayers  int               `json:"maxPlayers"`
	PlayerCount int               `json:"playerCount"`
	HasPassword bool              `json:"hasPassword"`
	Status      models.RoomStatus `json:"status"`
}

// validateNickname enforces the display-name bounds: empty is rejected, and
// names containing non-Latin runes get a tighter limit than plain ASCII.
func validateNickname(nickname string) error {
	if nickname == "" {
		return protocol.Validation("nickname is required")
	}
	limit := latinNicknameMax
	for _, r := range nickname {
		if r > unicode.MaxASCII && !unicode.Is(unicode.Latin, r) {
			limit = wideNicknameMax
			break
		}
	}
	if utf8.RuneCountInString(nickname) > limit {
		return protocol.Validation("nickname is too long")
	}
	return nil
}

func (r *Room) ID() string { return r.id }

// Snapshot returns the room's full state. Used for room_data and as the
// payload of every whole-room broadcast.
func (r *Room) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() State {
	players := make([]models.Player, len(r.players))
	for i, p := range r.players {
		players[i] = *p
	}
	messages := make([]models.Message, len(r.messages))
	copy(messages, r.messages)

	var scenario *models.Scenario
	if r.scenario != nil {
		s := *r.scenario
		scenario = &s
	}
	var started int64
	if !r.startedAt.IsZero() {
		started = r.startedAt.UnixMilli()
	}
	return State{
		RoomID:       r.id,
		Title:        r.title,
		MaxPlayers:   r.maxPlayers,
		HasPassword:  r.password != "",
		HostID:       r.hostID,
		Status:       r.status,
		Players:      players,
		Messages:     messages,
		Scenario:     scenario,
		HintsLeft:    r.hintsLeft,
		Winner:       r.winner,
		StartedAt:    started,
		PendingStart: r.pendingStart,
	}
}

func (r *Room) summaryLocked() Summary {
	return Summary{
		RoomID:      r.id,
		Title:       r.title,
		MaxPlayers:  r.maxPlayers,
		PlayerCount: len(r.players),
		HasPassword: r.password != "",
		Status:      r.status,
	}
}

func (r *Room) playerLocked(connID string) *models.Player {
	for _, p := range r.players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) questionerLocked() *models.Player {
	for _, p := range r.players {
		if p.Role == models.RoleQuestioner {
			return p
		}
	}
	return nil
}

// broadcastLocked pushes an event to every member. Send is non-blocking, so
// holding the room lock here cannot deadlock against a slow client.
func (r *Room) broadcastLocked(ev protocol.ServerEvent) {
	for _, c := range r.conns {
		c.Send(ev)
	}
}

func (r *Room) sendToLocked(connID string, ev protocol.ServerEvent) {
	if c, ok := r.conns[connID]; ok {
		c.Send(ev)
	}
}

// join appends a new Answerer. Capacity and password checks run before any
// mutation; on success the joiner receives joined_room and every member
// (joiner included) receives player_joined with the updated room.
func (r *Room) join(conn *protocol.Conn, nickname, password string) error {
	if err := validateNickname(nickname); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= r.maxPlayers {
		return protocol.Capacity("room is full")
	}
	if r.password != "" && r.password != password {
		return protocol.Auth("wrong password")
	}

	r.players = append(r.players, &models.Player{
		ConnID:      conn.ID,
		Nickname:    nickname,
		Role:        models.RoleAnswerer,
		GuessesLeft: r.maxGuesses,
	})
	r.conns[conn.ID] = conn

	state := r.snapshotLocked()
	conn.Send(protocol.ServerEvent{Type: protocol.EvJoinedRoom, Data: state})
	r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvPlayerJoined, Data: state})
	return nil
}

// removePlayer detaches a connection from the room. If the host leaves, the
// longest-tenured remaining player inherits the host slot with ready forced
// true. Returns true when the room emptied and must be deleted.
func (r *Room) removePlayer(connID string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, p := range r.players {
		if p.ConnID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return len(r.players) == 0
	}
	leaving := r.players[idx]
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	delete(r.conns, connID)

	if len(r.players) == 0 {
		return true
	}

	if leaving.IsHost {
		next := r.players[0]
		next.IsHost = true
		next.IsReady = true
		r.hostID = next.ConnID
	}
	// A departed Questioner can no longer commit a scenario.
	if leaving.Role == models.RoleQuestioner {
		r.pendingStart = false
	}

	r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvPlayerLeft, Data: r.snapshotLocked()})
	return false
}

// SetRole switches the caller's role. The ANSWERER role is always free;
// QUESTIONER is an exclusive slot.
func (r *Room) SetRole(connID string, role models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerLocked(connID)
	if p == nil {
		return protocol.NotFound("player not in room")
	}
	switch role {
	case models.RoleAnswerer:
	case models.RoleQuestioner:
		if q := r.questionerLocked(); q != nil && q.ConnID != connID {
			return protocol.Conflict("questioner slot already taken")
		}
	default:
		return protocol.Validation("unknown role")
	}
	p.Role = role
	r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvPlayerUpdate, Data: r.snapshotLocked()})
	return nil
}

// SetReady toggles the caller's readiness. The host's stored flag may go
// false here, but the start gate always treats the host as ready.
func (r *Room) SetReady(connID string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerLocked(connID)
	if p == nil {
		return protocol.NotFound("player not in room")
	}
	p.IsReady = ready
	r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvPlayerUpdate, Data: r.snapshotLocked()})
	return nil
}

// RequestStart runs the host's start gate. On success the room enters the
// pending-scenario phase: the Questioner is privately prompted for a
// scenario and everyone else privately told to wait. The room status does
// not change until the scenario is committed.
func (r *Room) RequestStart(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if connID != r.hostID {
		return protocol.Forbidden("only the host can start the game")
	}
	if r.status != StatusWaiting {
		return protocol.Precondition("game already in progress")
	}
	if r.pendingStart {
		return protocol.Precondition("start already requested")
	}
	q := r.questionerLocked()
	if q == nil {
		return protocol.Precondition("a questioner is required")
	}
	if len(r.players) < minPlayers {
		return protocol.Precondition("at least 2 players are required")
	}
	for _, p := range r.players {
		if !p.IsHost && !p.IsReady {
			return protocol.Precondition("all players must be ready")
		}
	}

	r.pendingStart = true
	r.sendToLocked(q.ConnID, protocol.ServerEvent{Type: protocol.EvInputScenario})
	for _, p := range r.players {
		if p.ConnID != q.ConnID {
			r.sendToLocked(p.ConnID, protocol.ServerEvent{Type: protocol.EvWaitingScenario})
		}
	}
	return nil
}

// SubmitScenario commits the round's scenario and transitions to PLAYING.
// A custom scenario must carry title, content, and solution; absent one, the
// draw function supplies a catalog pick. The log is reset, the hint budget
// restored, and the full room (solution included) broadcast as game_started.
func (r *Room) SubmitScenario(connID string, custom *models.Scenario, draw func() models.Scenario) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.pendingStart {
		return protocol.Precondition("no start request is pending")
	}
	p := r.playerLocked(connID)
	if p == nil || p.Role != models.RoleQuestioner {
		return protocol.Forbidden("only the questioner can submit a scenario")
	}

	var scenario models.Scenario
	if custom != nil {
		if !custom.Complete() {
			return protocol.Validation("scenario needs a title, content, and solution")
		}
		scenario = *custom
	} else {
		scenario = draw()
	}

	r.status = StatusPlaying
	r.scenario = &scenario
	r.messages = r.messages[:0]
	r.guessQueue = r.guessQueue[:0]
	r.hintsLeft = r.hintBudget
	r.winner = ""
	r.startedAt = time.Now()
	r.pendingStart = false
	for _, pl := range r.players {
		pl.GuessesLeft = r.maxGuesses
	}

	r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvGameStarted, Data: r.snapshotLocked()})
	return nil
}

// SendChat appends a message to the round's log. HINT spends one unit of the
// Questioner's budget and additionally broadcasts the room so every client
// sees the new count; all other kinds are stored as passed.
func (r *Room) SendChat(connID, body string, kind models.MessageKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusPlaying {
		return protocol.Precondition("game is not in progress")
	}
	p := r.playerLocked(connID)
	if p == nil {
		return protocol.NotFound("player not in room")
	}
	if body == "" {
		return protocol.Validation("message is required")
	}
	if kind == "" {
		kind = models.KindChat
	}

	if kind == models.KindHint {
		if p.Role != models.RoleQuestioner {
			return protocol.Forbidden("only the questioner can give hints")
		}
		if r.hintsLeft <= 0 {
			return protocol.Precondition("no hints left")
		}
		r.hintsLeft--
		r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvRoomData, Data: r.snapshotLocked()})
	}

	msg := models.NewMessage(connID, p.Nickname, body, kind)
	r.messages = append(r.messages, msg)
	r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvMessageReceived, Data: msg})
	return nil
}

// AnswerQuestion records the Questioner's verdict as an ANSWER linked to the
// question. The target id is deliberately not checked against the log; the
// log is append-only and a stray answer cannot corrupt it.
func (r *Room) AnswerQuestion(connID string, questionID int64, verdict models.Verdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusPlaying {
		return protocol.Precondition("game is not in progress")
	}
	p := r.playerLocked(connID)
	if p == nil || p.Role != models.RoleQuestioner {
		return protocol.Forbidden("only the questioner can answer")
	}
	if !models.ValidAnswerVerdict(verdict) {
		return protocol.Validation("unknown verdict")
	}

	msg := models.NewAnswer(connID, p.Nickname, verdict, questionID)
	r.messages = append(r.messages, msg)
	r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvMessageReceived, Data: msg})
	return nil
}

// SubmitGuess enqueues a full-solution attempt on the room's FIFO queue and
// delivers it privately to the Questioner. Other players see nothing.
func (r *Room) SubmitGuess(connID, guess string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusPlaying {
		return protocol.Precondition("game is not in progress")
	}
	p := r.playerLocked(connID)
	if p == nil {
		return protocol.NotFound("player not in room")
	}
	if guess == "" {
		return protocol.Validation("guess is required")
	}
	if p.GuessesLeft <= 0 {
		return protocol.Precondition("no guesses left")
	}
	q := r.questionerLocked()
	if q == nil {
		return protocol.Precondition("a questioner is required")
	}

	r.guessSeq++
	pg := models.PendingGuess{
		GuesserID:   connID,
		GuesserName: p.Nickname,
		Text:        guess,
		Seq:         r.guessSeq,
	}
	r.guessQueue = append(r.guessQueue, pg)
	r.sendToLocked(q.ConnID, protocol.ServerEvent{Type: protocol.EvGuessSubmitted, Data: pg})
	return nil
}

// JudgeGuess resolves the guess at the front of the queue, strictly in
// arrival order. The supplied guesser id must match the front entry so a
// racing Questioner can never judge the wrong guess. A correct guess ends
// the round; an incorrect one costs the guesser a guess and is announced as
// a SYSTEM message.
func (r *Room) JudgeGuess(connID, guesserID string, correct bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusPlaying {
		return protocol.Precondition("game is not in progress")
	}
	p := r.playerLocked(connID)
	if p == nil || p.Role != models.RoleQuestioner {
		return protocol.Forbidden("only the questioner can judge guesses")
	}
	if len(r.guessQueue) == 0 {
		return protocol.Precondition("no pending guess")
	}
	front := r.guessQueue[0]
	if front.GuesserID != guesserID {
		return protocol.Conflict("guess queue out of order")
	}
	r.guessQueue = r.guessQueue[1:]

	if correct {
		r.status = StatusFinished
		r.winner = front.GuesserName
		r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvGameOver, Data: r.snapshotLocked()})
		return nil
	}

	if guesser := r.playerLocked(guesserID); guesser != nil && guesser.GuessesLeft > 0 {
		guesser.GuessesLeft--
	}
	msg := models.NewMessage("", "system", fmt.Sprintf("%s's guess was wrong", front.GuesserName), models.KindSystem)
	r.messages = append(r.messages, msg)
	r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvMessageReceived, Data: msg})
	r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvGuessFailed, Data: front})
	return nil
}

// Reset returns a FINISHED room to WAITING: log, scenario, winner, and guess
// queue cleared, every non-host ready flag dropped. Calling it in any other
// state is a silent no-op so a double-click costs nothing.
func (r *Room) Reset(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.playerLocked(connID) == nil {
		return protocol.NotFound("player not in room")
	}
	if r.status != StatusFinished {
		return nil
	}

	r.status = StatusWaiting
	r.messages = r.messages[:0]
	r.guessQueue = r.guessQueue[:0]
	r.scenario = nil
	r.winner = ""
	r.hintsLeft = 0
	r.startedAt = time.Time{}
	for _, p := range r.players {
		p.IsReady = p.IsHost
	}

	r.broadcastLocked(protocol.ServerEvent{Type: protocol.EvRoomReset, Data: r.snapshotLocked()})
	return nil
}
