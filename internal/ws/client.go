package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"room-chat/internal/chat"
	"room-chat/internal/models"
	"room-chat/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 16 * 1024
)

// unknownEventLabel counts every unrecognized inbound type under one series.
const unknownEventLabel = "unknown"

var errSendBufferFull = errors.New("send buffer full")

// RoomService is the room protocol as seen by a websocket client.
type RoomService interface {
	Connect(conn chat.Conn) error
	Disconnect(connID string)
	Join(ctx context.Context, connID, roomID string) error
	Send(ctx context.Context, connID, roomID, body string) error
	Leave(connID, roomID string) error
}

// Client is one websocket connection. It implements chat.Conn.
type Client struct {
	conn     *websocket.Conn
	identity models.Identity
	info     ConnInfo
	log      *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ chat.Conn = (*Client)(nil)

func NewClient(conn *websocket.Conn, identity models.Identity, info ConnInfo, bufferSize int, log *slog.Logger) *Client {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Client{
		conn:     conn,
		identity: identity,
		info:     info,
		log:      log.With("conn_id", info.ConnID, "user_id", info.UserID),
		send:     make(chan []byte, bufferSize),
		done:     make(chan struct{}),
	}
}

func (c *Client) ID() string                { return c.info.ConnID }
func (c *Client) Identity() models.Identity { return c.identity }
func (c *Client) Info() ConnInfo            { return c.info }

// Deliver queues evt for the writer without blocking.
func (c *Client) Deliver(evt models.RoomEvent) error {
	select {
	case <-c.done:
		return chat.ErrDisconnected
	default:
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.Type, err)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close sends a close frame and stops both pumps. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump reads client events until the connection fails and returns the read error.
func (c *Client) ReadPump(ctx context.Context, service RoomService) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("ws read error", "error", err)
			}
			return err
		}
		c.handle(ctx, service, data)
	}
}

// handle processes one inbound event. A panic is contained to the event.
func (c *Client) handle(ctx context.Context, service RoomService, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("ws event handler panic", "panic", r)
			c.sendError(nil, fmt.Errorf("internal error"))
		}
	}()

	ctx = observability.WithRequestID(ctx, observability.NewRequestID(""))

	var evt models.InboundEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.sendError(nil, fmt.Errorf("%w: malformed event", chat.ErrInvalidInput))
		return
	}
	switch evt.Type {
	case models.EventJoinRoom:
		observability.IncWSEvent(evt.Type)
		var p models.RoomPayload
		if err := decodePayload(evt.Payload, &p); err != nil {
			c.sendError(nil, err)
			return
		}
		if err := service.Join(ctx, c.ID(), p.RoomID); err != nil {
			c.fail("join", p.RoomID, err)
		}

	case models.EventSendMessage:
		observability.IncWSEvent(evt.Type)
		var p models.SendPayload
		if err := decodePayload(evt.Payload, &p); err != nil {
			c.sendError(nil, err)
			return
		}
		if err := service.Send(ctx, c.ID(), p.RoomID, p.Body); err != nil {
			c.fail("send", p.RoomID, err)
		}

	case models.EventLeaveRoom:
		observability.IncWSEvent(evt.Type)
		var p models.RoomPayload
		if err := decodePayload(evt.Payload, &p); err != nil {
			c.sendError(nil, err)
			return
		}
		if err := service.Leave(c.ID(), p.RoomID); err != nil {
			c.fail("leave", p.RoomID, err)
		}

	default:
		observability.IncWSEvent(unknownEventLabel)
		c.sendError(nil, fmt.Errorf("%w: unknown event type %q", chat.ErrInvalidInput, evt.Type))
	}
}

func (c *Client) fail(op, roomID string, err error) {
	if errors.Is(err, chat.ErrDisconnected) {
		return
	}
	c.log.Info("room operation failed", "op", op, "room_id", roomID, "error", err)
	c.sendError(roomRef(roomID), err)
}

func (c *Client) sendError(roomID *uuid.UUID, err error) {
	_ = c.Deliver(models.NewErrorEvent(roomID, chat.ErrorCode(err), err.Error()))
}

// WritePump writes queued events and keepalive pings until the client closes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Warn("ws write error", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Warn("ws ping error", "error", err)
				return
			}

		case <-c.done:
			return
		}
	}
}
