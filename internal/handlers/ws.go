package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hyunwoo-s/soupgame/internal/middleware"
	"github.com/hyunwoo-s/soupgame/internal/protocol"
)

const outBufferSize = 16

// WSHandler upgrades the connection and runs the read/write pumps until the
// client goes away. Disconnect cleanup is the same path as an explicit leave.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"soup"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			s.log.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "soup" {
			c.Close(BadSubprotocolError, "client must speak the soup subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		conn := protocol.NewConn(uuid.NewString(), outBufferSize)

		s.register(conn)
		middleware.LogWebSocketConnect(s.log, remoteAddr, r.URL.Path)

		// New connections land in the lobby, so seed the room listing.
		conn.Send(protocol.ServerEvent{Type: protocol.EvRoomListUpdate, Data: s.Registry.List()})

		go s.writePump(ctx, c, conn)
		readErr := s.readPump(ctx, c, conn)

		// ---- Cleanup after readPump exits ----
		cancel()
		s.unregister(conn.ID)
		left := s.Registry.Leave(conn.ID)
		s.Sessions.Leave(conn.ID)
		close(conn.Out)
		if left != nil {
			s.broadcastRoomList()
		}
		middleware.LogWebSocketDisconnect(s.log, remoteAddr, r.URL.Path, readErr)
	}
}

// readPump handles incoming events until the connection closes or errors.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, conn *protocol.Conn) error {
	s.log.Infof("starting read pump for conn %v", conn.ID)
	defer s.log.Infof("exiting read pump for conn %v", conn.ID)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				s.log.Infof("websocket closed normally for conn %v", conn.ID)
				return nil
			}
			if strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			s.log.Warnf("read error for conn %v: %v (CloseStatus: %d)", conn.ID, err, closeStatus)
			return err
		}

		if typ != websocket.MessageText {
			s.log.Warnf("received non-text message type %d from conn %v, ignoring", typ, conn.ID)
			continue
		}

		var ev protocol.ClientEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			s.log.Warnf("invalid json from conn %v: %v", conn.ID, err)
			conn.SendError(protocol.Validation("invalid JSON format"))
			continue
		}

		payload, err := ev.Decode()
		if err != nil {
			conn.SendError(protocol.Validation(err.Error()))
			continue
		}

		if err := s.dispatch(conn, ev.Type, payload); err != nil {
			s.log.WithFields(logrus.Fields{
				"conn":  conn.ID,
				"event": ev.Type,
			}).Warnf("event rejected: %v", err)
			conn.SendError(err)
		}
	}
}

// writePump drains the connection's outbound channel and keeps the socket
// alive with periodic pings.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, conn *protocol.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	defer func() {
		_ = c.Close(websocket.StatusGoingAway, "write pump stopping")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.Out:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Warnf("failed to marshal outgoing event for conn %v: %v", conn.ID, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.log.Warnf("failed to write to websocket for conn %v: %v", conn.ID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.log.Warnf("failed to ping conn %v: %v, assuming disconnect", conn.ID, err)
				return
			}
		}
	}
}
