package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/game"
)

// Message types of the WebSocket protocol.
const (
	MessageNotification = "notification"
	MessageRPC          = "rpc"
	MessageResponse     = "response"
	MessageError        = "error"
)

const (
	writeWait   = 10 * time.Second
	sendBacklog = 64
)

// ErrSeatClosed is returned by RPC after the seat was closed.
var ErrSeatClosed = errors.New("seat closed")

// Message is one frame of the WebSocket protocol. The server sends
// notification, rpc and error frames; the client answers rpc frames with
// a response frame carrying the same id.
type Message struct {
	Type         string             `json:"type"`
	ID           uint64             `json:"id,omitempty"`
	Notification *game.Notification `json:"notification,omitempty"`
	Request      *game.RPCRequest   `json:"request,omitempty"`
	Response     json.RawMessage    `json:"response,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Conn is the part of *websocket.Conn a seat uses.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

type pendingRPC struct {
	id    uint64
	req   game.RPCRequest
	reply chan json.RawMessage
}

// WebSocketIO is the PlayerIO of a human seat. The client may disconnect
// and attach again; the latest notification and the outstanding request
// are sent again on every attach.
type WebSocketIO struct {
	who    int
	logger *zap.Logger

	mu      sync.Mutex
	conn    *connection
	latest  *game.Notification
	pending *pendingRPC
	nextID  uint64

	closeOnce sync.Once
	closed    chan struct{}
}

// NewWebSocketIO creates a detached seat.
func NewWebSocketIO(who int, logger *zap.Logger) *WebSocketIO {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketIO{
		who:    who,
		logger: logger.With(zap.Int("who", who)),
		closed: make(chan struct{}),
	}
}

// Attach binds a client connection to the seat, replacing any previous
// one. resume is sent first when the seat has not notified anything yet
// on this server.
func (s *WebSocketIO) Attach(raw Conn, resume *game.Notification) {
	c := newConnection(raw, s)

	s.mu.Lock()
	old := s.conn
	s.conn = c
	latest := s.latest
	if latest == nil {
		latest = resume
	}
	pending := s.pending
	s.mu.Unlock()

	if old != nil {
		old.close()
	}
	select {
	case <-s.closed:
		c.close()
		return
	default:
	}

	go c.writePump()
	go c.readPump()

	if latest != nil {
		c.enqueue(Message{Type: MessageNotification, Notification: latest})
	}
	if pending != nil {
		req := pending.req
		c.enqueue(Message{Type: MessageRPC, ID: pending.id, Request: &req})
	}
	s.logger.Info("seat attached", zap.Bool("resumed", latest != nil))
}

// Notify sends a notification if a client is attached.
func (s *WebSocketIO) Notify(n game.Notification) {
	s.mu.Lock()
	s.latest = &n
	c := s.conn
	s.mu.Unlock()
	if c != nil {
		c.enqueue(Message{Type: MessageNotification, Notification: &n})
	}
}

// RPC sends a request and waits for the matching response. A detached
// seat keeps the request outstanding until a client attaches or ctx ends.
func (s *WebSocketIO) RPC(ctx context.Context, req game.RPCRequest) (game.RPCResponse, error) {
	s.mu.Lock()
	s.nextID++
	p := &pendingRPC{id: s.nextID, req: req, reply: make(chan json.RawMessage, 1)}
	s.pending = p
	c := s.conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.pending == p {
			s.pending = nil
		}
		s.mu.Unlock()
	}()

	if c != nil {
		c.enqueue(Message{Type: MessageRPC, ID: p.id, Request: &req})
	}

	select {
	case raw := <-p.reply:
		return game.DecodeRPCResponse(req.Method, raw)
	case <-ctx.Done():
		return game.RPCResponse{}, ctx.Err()
	case <-s.closed:
		return game.RPCResponse{}, ErrSeatClosed
	}
}

// Close detaches the client and fails any outstanding request.
func (s *WebSocketIO) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		c := s.conn
		s.conn = nil
		s.mu.Unlock()
		if c != nil {
			c.close()
		}
	})
}

// deliver hands a response frame to the outstanding request.
func (s *WebSocketIO) deliver(c *connection, msg Message) {
	s.mu.Lock()
	p := s.pending
	if p == nil || p.id != msg.ID {
		s.mu.Unlock()
		c.enqueue(Message{Type: MessageError, ID: msg.ID, Error: "no outstanding request with this id"})
		return
	}
	s.pending = nil
	s.mu.Unlock()
	p.reply <- msg.Response
}

func (s *WebSocketIO) detach(c *connection) {
	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
	}
	s.mu.Unlock()
}

// connection owns one client socket: a reader and a single writer.
type connection struct {
	raw  Conn
	seat *WebSocketIO
	send chan Message

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(raw Conn, seat *WebSocketIO) *connection {
	return &connection{
		raw:  raw,
		seat: seat,
		send: make(chan Message, sendBacklog),
		done: make(chan struct{}),
	}
}

// enqueue never blocks. A client that falls behind is dropped and must
// attach again to resynchronise.
func (c *connection) enqueue(msg Message) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		c.seat.logger.Warn("client too slow, dropping connection")
		c.close()
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.raw.Close()
		c.seat.detach(c)
	})
}

func (c *connection) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.raw.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.raw.WriteJSON(msg); err != nil {
				c.seat.logger.Debug("write failed", zap.Error(err))
				c.close()
				return
			}
		}
	}
}

func (c *connection) readPump() {
	defer c.close()
	for {
		var msg Message
		if err := c.raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.seat.logger.Info("client disconnected", zap.Error(err))
			}
			return
		}
		if msg.Type != MessageResponse {
			c.enqueue(Message{Type: MessageError, ID: msg.ID, Error: "unexpected message type " + msg.Type})
			continue
		}
		c.seat.deliver(c, msg)
	}
}
