// Package handlers carries the HTTP and WebSocket surface: connection
// lifecycle, event dispatch, and the lobby-list broadcast that keeps clients
// outside any room in sync with the registry.
package handlers

import (
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hyunwoo-s/soupgame/internal/models"
	"github.com/hyunwoo-s/soupgame/internal/protocol"
	"github.com/hyunwoo-s/soupgame/internal/room"
	"github.com/hyunwoo-s/soupgame/internal/single"
)

// Server holds every live connection plus the stores the dispatch switch
// routes into. No global state; main wires one of these up.
type Server struct {
	mu    sync.Mutex
	conns map[string]*protocol.Conn

	Registry *room.Registry
	Sessions *single.Manager
	draw     func() models.Scenario
	log      *logrus.Logger
}

func NewServer(log *logrus.Logger, reg *room.Registry, sessions *single.Manager, draw func() models.Scenario) *Server {
	return &Server{
		conns:    make(map[string]*protocol.Conn),
		Registry: reg,
		Sessions: sessions,
		draw:     draw,
		log:      log,
	}
}

func (s *Server) register(conn *protocol.Conn) {
	s.mu.Lock()
	s.conns[conn.ID] = conn
	s.mu.Unlock()
}

func (s *Server) unregister(connID string) {
	s.mu.Lock()
	delete(s.conns, connID)
	s.mu.Unlock()
}

// broadcastRoomList pushes the current lobby listing to every connection
// that is not inside a room. Players mid-game get room_data updates instead,
// so the listing would only be noise for them.
func (s *Server) broadcastRoomList() {
	list := s.Registry.List()
	ev := protocol.ServerEvent{Type: protocol.EvRoomListUpdate, Data: list}

	s.mu.Lock()
	targets := make([]*protocol.Conn, 0, len(s.conns))
	for id, conn := range s.conns {
		if s.Registry.RoomOf(id) == nil {
			targets = append(targets, conn)
		}
	}
	s.mu.Unlock()

	for _, conn := range targets {
		conn.Send(ev)
	}
}

// HealthzHandler reports liveness for load balancers and probes.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// dispatch routes one decoded client event. Every branch returns either nil
// or a *protocol.GameError the caller sends back on the same connection.
func (s *Server) dispatch(conn *protocol.Conn, evType string, payload any) error {
	switch evType {
	case protocol.EvCreateRoom:
		p := payload.(*protocol.CreateRoomPayload)
		if _, err := s.Registry.Create(conn, *p); err != nil {
			return err
		}
		s.broadcastRoomList()
		return nil

	case protocol.EvJoinRoom:
		p := payload.(*protocol.JoinRoomPayload)
		if _, err := s.Registry.Join(conn, p.RoomID, p.Nickname, p.Password); err != nil {
			return err
		}
		s.broadcastRoomList()
		return nil

	case protocol.EvLeaveRoom:
		if rm := s.Registry.Leave(conn.ID); rm != nil {
			s.broadcastRoomList()
		}
		return nil

	case protocol.EvGetRooms:
		conn.Send(protocol.ServerEvent{Type: protocol.EvRoomListUpdate, Data: s.Registry.List()})
		return nil

	case protocol.EvGetRoom:
		p := payload.(*protocol.GetRoomPayload)
		rm, err := s.Registry.Get(p.RoomID)
		if err != nil {
			return err
		}
		conn.Send(protocol.ServerEvent{Type: protocol.EvRoomData, Data: rm.Snapshot()})
		return nil

	case protocol.EvSetRole:
		p := payload.(*protocol.SetRolePayload)
		rm, err := s.roomOf(conn)
		if err != nil {
			return err
		}
		return rm.SetRole(conn.ID, p.Role)

	case protocol.EvSetReady:
		p := payload.(*protocol.SetReadyPayload)
		rm, err := s.roomOf(conn)
		if err != nil {
			return err
		}
		return rm.SetReady(conn.ID, p.IsReady)

	case protocol.EvRequestStart:
		rm, err := s.roomOf(conn)
		if err != nil {
			return err
		}
		return rm.RequestStart(conn.ID)

	case protocol.EvSubmitScenario:
		p := payload.(*protocol.SubmitScenarioPayload)
		rm, err := s.roomOf(conn)
		if err != nil {
			return err
		}
		if err := rm.SubmitScenario(conn.ID, p.CustomScenario, s.draw); err != nil {
			return err
		}
		s.broadcastRoomList()
		return nil

	case protocol.EvSendChat:
		p := payload.(*protocol.SendChatPayload)
		rm, err := s.roomOf(conn)
		if err != nil {
			return err
		}
		return rm.SendChat(conn.ID, p.Message, p.Kind)

	case protocol.EvAnswerQuestion:
		p := payload.(*protocol.AnswerQuestionPayload)
		rm, err := s.roomOf(conn)
		if err != nil {
			return err
		}
		return rm.AnswerQuestion(conn.ID, p.QuestionID, p.Verdict)

	case protocol.EvSubmitGuess:
		p := payload.(*protocol.SubmitGuessPayload)
		rm, err := s.roomOf(conn)
		if err != nil {
			return err
		}
		return rm.SubmitGuess(conn.ID, p.Guess)

	case protocol.EvJudgeGuess:
		p := payload.(*protocol.JudgeGuessPayload)
		rm, err := s.roomOf(conn)
		if err != nil {
			return err
		}
		if err := rm.JudgeGuess(conn.ID, p.GuesserID, p.IsCorrect); err != nil {
			return err
		}
		if p.IsCorrect {
			s.broadcastRoomList()
		}
		return nil

	case protocol.EvResetRoom:
		rm, err := s.roomOf(conn)
		if err != nil {
			return err
		}
		if err := rm.Reset(conn.ID); err != nil {
			return err
		}
		s.broadcastRoomList()
		return nil

	case protocol.EvStartSingleGame:
		s.Sessions.Start(conn)
		return nil

	case protocol.EvSingleChat:
		p := payload.(*protocol.SingleChatPayload)
		return s.Sessions.Chat(conn, p.Message)

	case protocol.EvSingleHint:
		return s.Sessions.RequestHint(conn)

	case protocol.EvLeaveSingleGame:
		s.Sessions.Leave(conn.ID)
		return nil
	}
	return protocol.Validation("unknown event type " + evType)
}

func (s *Server) roomOf(conn *protocol.Conn) (*room.Room, error) {
	rm := s.Registry.RoomOf(conn.ID)
	if rm == nil {
		return nil, protocol.Precondition("not in a room")
	}
	return rm, nil
}
