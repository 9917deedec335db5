package models

// RoomStatus names a state of the game session machine. The room package
// owns the transition rules.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "WAITING"
	StatusPlaying  RoomStatus = "PLAYING"
	StatusFinished RoomStatus = "FINISHED"
)

// Role is a player's function within a room. Exactly one player per room may
// hold the QUESTIONER slot at any time.
type Role string

const (
	RoleQuestioner Role = "QUESTIONER"
	RoleAnswerer   Role = "ANSWERER"
)

// Player is one connection's presence in a room. The connection id is the
// player's identity for the lifetime of that connection; there are no
// persistent accounts.
type Player struct {
	ConnID      string `json:"id"`
	Nickname    string `json:"nickname"`
	IsHost      bool   `json:"isHost"`
	Role        Role   `json:"role"`
	IsReady     bool   `json:"isReady"`
	GuessesLeft int    `json:"guessesLeft"`
}
