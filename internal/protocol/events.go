// Package protocol defines the closed set of events exchanged over a
// connection. Every event name maps to exactly one payload struct, so the
// dispatch switch can be checked exhaustively.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyunwoo-s/soupgame/internal/models"
)

// Inbound event names (client → server).
const (
	EvCreateRoom      = "create_room"
	EvJoinRoom        = "join_room"
	EvLeaveRoom       = "leave_room"
	EvGetRooms        = "get_rooms"
	EvGetRoom         = "get_room"
	EvSetRole         = "set_role"
	EvSetReady        = "set_ready"
	EvRequestStart    = "request_start"
	EvSubmitScenario  = "submit_scenario"
	EvSendChat        = "send_chat"
	EvAnswerQuestion  = "answer_question"
	EvSubmitGuess     = "submit_guess"
	EvJudgeGuess      = "judge_guess"
	EvResetRoom       = "reset_room"
	EvStartSingleGame = "start_single_game"
	EvSingleChat      = "single_chat"
	EvSingleHint      = "single_request_hint"
	EvLeaveSingleGame = "leave_single_game"
)

// Outbound event names (server → client).
const (
	EvError             = "error"
	EvRoomCreated       = "room_created"
	EvJoinedRoom        = "joined_room"
	EvRoomListUpdate    = "room_list_update"
	EvPlayerJoined      = "player_joined"
	EvPlayerLeft        = "player_left"
	EvPlayerUpdate      = "player_update"
	EvRoomData          = "room_data"
	EvInputScenario     = "input_scenario"
	EvWaitingScenario   = "waiting_scenario"
	EvGameStarted       = "game_started"
	EvMessageReceived   = "message_received"
	EvGuessSubmitted    = "guess_submitted"
	EvGuessFailed       = "guess_failed"
	EvGameOver          = "game_over"
	EvRoomReset         = "room_reset"
	EvSingleGameStarted = "single_game_started"
	EvSingleMessage     = "single_message_received"
	EvSingleGameOver    = "single_game_over"
	EvSingleHintsUpdate = "single_hints_update"
)

// ClientEvent is the inbound envelope. Data is decoded into the payload
// struct matching Type by Decode.
type ClientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the outbound envelope.
type ServerEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Event constructors keep the outbound surface typed at call sites.

func ErrorEvent(err error) ServerEvent {
	var ge *GameError
	if errors.As(err, &ge) {
		return ServerEvent{Type: EvError, Data: ErrorPayload{Kind: ge.Kind, Message: ge.Message}}
	}
	return ServerEvent{Type: EvError, Data: ErrorPayload{Message: err.Error()}}
}

type ErrorPayload struct {
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message"`
}

// Inbound payloads, one per event name.

type CreateRoomPayload struct {
	Title      string `json:"title"`
	MaxPlayers int    `json:"maxPlayers"`
	Password   string `json:"password,omitempty"`
	Nickname   string `json:"nickname"`
	Hints      int    `json:"hints,omitempty"`
	MaxGuesses int    `json:"maxGuesses,omitempty"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
	Password string `json:"password,omitempty"`
}

type GetRoomPayload struct {
	RoomID string `json:"roomId"`
}

type SetRolePayload struct {
	Role models.Role `json:"role"`
}

type SetReadyPayload struct {
	IsReady bool `json:"isReady"`
}

type SubmitScenarioPayload struct {
	CustomScenario *models.Scenario `json:"customScenario,omitempty"`
}

type SendChatPayload struct {
	Message string             `json:"message"`
	Kind    models.MessageKind `json:"type"`
}

type AnswerQuestionPayload struct {
	QuestionID int64          `json:"questionId"`
	Verdict    models.Verdict `json:"answer"`
}

type SubmitGuessPayload struct {
	Guess string `json:"guess"`
}

type JudgeGuessPayload struct {
	GuesserID string `json:"guesserId"`
	IsCorrect bool   `json:"isCorrect"`
}

type SingleChatPayload struct {
	Message string `json:"message"`
}

// Decode unmarshals the envelope's data into the payload type for its event
// name. Events that carry no payload decode to nil. Unknown event names are
// an error so the dispatch switch stays exhaustive.
func (ev ClientEvent) Decode() (any, error) {
	var payload any
	switch ev.Type {
	case EvCreateRoom:
		payload = &CreateRoomPayload{}
	case EvJoinRoom:
		payload = &JoinRoomPayload{}
	case EvGetRoom:
		payload = &GetRoomPayload{}
	case EvSetRole:
		payload = &SetRolePayload{}
	case EvSetReady:
		payload = &SetReadyPayload{}
	case EvSubmitScenario:
		payload = &SubmitScenarioPayload{}
	case EvSendChat:
		payload = &SendChatPayload{}
	case EvAnswerQuestion:
		payload = &AnswerQuestionPayload{}
	case EvSubmitGuess:
		payload = &SubmitGuessPayload{}
	case EvJudgeGuess:
		payload = &JudgeGuessPayload{}
	case EvSingleChat:
		payload = &SingleChatPayload{}
	case EvLeaveRoom, EvGetRooms, EvRequestStart, EvResetRoom,
		EvStartSingleGame, EvSingleHint, EvLeaveSingleGame:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if len(ev.Data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(ev.Data, payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", ev.Type, err)
	}
	return payload, nil
}
