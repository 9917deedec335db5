package protocol

import (
	"github.com/sirupsen/logrus"
)

// Conn is one client's presence on the server: the connection id that serves
// as the player's identity plus the buffered outbound channel drained by the
// transport's write pump. Lifecycle (context cancellation, socket close) is
// owned entirely by the transport.
type Conn struct {
	ID  string
	Out chan ServerEvent
}

// NewConn builds a connection with an outbound buffer of the given size.
func NewConn(id string, buf int) *Conn {
	return &Conn{ID: id, Out: make(chan ServerEvent, buf)}
}

// Send pushes an event onto the outbound channel without blocking. A full or
// closed channel drops the event; the write pump owns delivery, and game
// state must never stall on a slow client.
func (c *Conn) Send(ev ServerEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Warnf("conn %s: send on closed channel, dropped %q", c.ID, ev.Type)
		}
	}()
	select {
	case c.Out <- ev:
	default:
		logrus.Warnf("conn %s: outbound buffer full, dropped %q", c.ID, ev.Type)
	}
}

// SendError reports a request-scoped failure to this connection only.
func (c *Conn) SendError(err error) {
	c.Send(ErrorEvent(err))
}
