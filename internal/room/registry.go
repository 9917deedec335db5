package room

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hyunwoo-s/soupgame/internal/models"
	"github.com/hyunwoo-s/soupgame/internal/protocol"
)

// Options configures rooms created through a Registry.
type Options struct {
	// HintBudget is the hints-remaining counter set on scenario commit.
	HintBudget int
	// MaxGuesses is the default guesses-remaining counter per Answerer,
	// used when room creation does not override it.
	MaxGuesses int
	// Draw supplies a random catalog scenario for rounds without a custom
	// submission.
	Draw func() models.Scenario
}

// Registry owns the room-id → Room mapping and the connection → room index
// that guarantees one room per connection. It is the only process-wide
// shared structure of the multiplayer path; rooms serialize their own state
// under their own locks. Lock order is always reg.mu before any room's
// mutex, so membership changes and room deletion stay atomic with respect
// to each other.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	byConn map[string]string

	opts Options
	log  *logrus.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(log *logrus.Logger, opts Options) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		byConn: make(map[string]string),
		opts:   opts,
		log:    log,
	}
}

// Create makes a room with the caller as its sole player: host, ANSWERER,
// ready. maxPlayers is clamped to the 2–10 range. The creator receives
// room_created with the new room's state.
func (reg *Registry) Create(conn *protocol.Conn, p protocol.CreateRoomPayload) (*Room, error) {
	if err := validateTitle(p.Title); err != nil {
		return nil, err
	}
	if err := validateNickname(p.Nickname); err != nil {
		return nil, err
	}

	mp := p.MaxPlayers
	if mp < minPlayers {
		mp = minPlayers
	}
	if mp > maxPlayers {
		mp = maxPlayers
	}
	hints := reg.opts.HintBudget
	if p.Hints > 0 {
		hints = p.Hints
	}
	guesses := reg.opts.MaxGuesses
	if p.MaxGuesses > 0 {
		guesses = p.MaxGuesses
	}

	r := &Room{
		id:         uuid.NewString(),
		title:      p.Title,
		maxPlayers: mp,
		password:   p.Password,
		hostID:     conn.ID,
		status:     StatusWaiting,
		conns:      map[string]*protocol.Conn{conn.ID: conn},
		hintBudget: hints,
		maxGuesses: guesses,
	}
	r.players = []*models.Player{{
		ConnID:      conn.ID,
		Nickname:    p.Nickname,
		IsHost:      true,
		Role:        models.RoleAnswerer,
		IsReady:     true,
		GuessesLeft: guesses,
	}}

	reg.mu.Lock()
	if _, inRoom := reg.byConn[conn.ID]; inRoom {
		reg.mu.Unlock()
		return nil, protocol.Precondition("already in a room")
	}
	reg.rooms[r.id] = r
	reg.byConn[conn.ID] = r.id
	reg.mu.Unlock()

	reg.log.WithFields(logrus.Fields{"room": r.id, "host": conn.ID}).Info("room created")
	conn.Send(protocol.ServerEvent{Type: protocol.EvRoomCreated, Data: r.Snapshot()})
	return r, nil
}

// Join adds the connection to the identified room as a new Answerer. The
// registry lock is held across the room mutation, so a join can never land
// in a room a concurrent leave is deleting.
func (reg *Registry) Join(conn *protocol.Conn, roomID, nickname, password string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, inRoom := reg.byConn[conn.ID]; inRoom {
		return nil, protocol.Precondition("already in a room")
	}
	r, ok := reg.rooms[roomID]
	if !ok {
		return nil, protocol.NotFound("room not found")
	}

	if err := r.join(conn, nickname, password); err != nil {
		return nil, err
	}
	reg.byConn[conn.ID] = r.id

	reg.log.WithFields(logrus.Fields{"room": r.id, "conn": conn.ID}).Info("player joined")
	return r, nil
}

// Leave removes the connection from whichever room contains it. An emptied
// room is deleted immediately. The call is idempotent: leaving twice, or
// leave followed by disconnect, is harmless. Returns the affected room, or
// nil if the connection was in none.
func (reg *Registry) Leave(connID string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	roomID, ok := reg.byConn[connID]
	if !ok {
		return nil
	}
	delete(reg.byConn, connID)
	r := reg.rooms[roomID]
	if r == nil {
		return nil
	}

	if empty := r.removePlayer(connID); empty {
		delete(reg.rooms, roomID)
		reg.log.WithField("room", roomID).Info("room deleted")
	}
	return r
}

// Get returns the identified room.
func (reg *Registry) Get(roomID string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[roomID]
	if !ok {
		return nil, protocol.NotFound("room not found")
	}
	return r, nil
}

// RoomOf returns the room currently owning the connection, or nil.
func (reg *Registry) RoomOf(connID string) *Room {
	reg.mu.Lock()
	roomID, ok := reg.byConn[connID]
	r := reg.rooms[roomID]
	reg.mu.Unlock()
	if !ok {
		return nil
	}
	return r
}

// List snapshots every room for the lobby display.
func (reg *Registry) List() []Summary {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()

	out := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		out = append(out, r.summaryLocked())
		r.mu.Unlock()
	}
	return out
}
