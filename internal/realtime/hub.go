package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"weddinghub/internal/domain/booking"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
	sendBuffer = 64
)

// WSEvent is pushed to subscribed clients.
type WSEvent struct {
	Type      string         `json:"type"`
	BookingID int64          `json:"booking_id,omitempty"`
	Payload   *booking.Event `json:"payload,omitempty"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message,omitempty"`
}

const (
	EventBookingUpdated = "booking_updated"
	EventSubscribed     = "subscribed"
	EventError          = "error"
	EventPong           = "pong"
)

// clientMessage is what a client may send.
type clientMessage struct {
	Type      string `json:"type"`
	BookingID int64  `json:"booking_id"`
}

type connection struct {
	actor    booking.Actor
	conn     *websocket.Conn
	send     chan []byte
	bookings map[int64]bool
}

// Hub fans committed booking changes out to websocket subscribers. A client
// subscribes per booking and only receives events for bookings it is a party
// to. Hub implements booking.Notifier.
type Hub struct {
	mu          sync.RWMutex
	connections map[*connection]struct{}
	loggerf     func(format string, args ...interface{})
}

func NewHub(loggerf func(format string, args ...interface{})) *Hub {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Hub{
		connections: make(map[*connection]struct{}),
		loggerf:     loggerf,
	}
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = struct{}{}
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[c]; ok {
		delete(h.connections, c)
		close(c.send)
	}
}

// BookingChanged delivers ev to every subscriber allowed to see it. Slow
// clients miss events rather than stall the engine.
func (h *Hub) BookingChanged(ev booking.Event) {
	data, err := json.Marshal(&WSEvent{Type: EventBookingUpdated, BookingID: ev.BookingID, Payload: &ev})
	if err != nil {
		h.loggerf("level=error msg=marshal booking event failed booking_id=%d err=%v", ev.BookingID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		if !c.bookings[ev.BookingID] || !party(c.actor, ev) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.loggerf("level=warn msg=websocket client too slow, event dropped booking_id=%d actor=%s", ev.BookingID, c.actor)
		}
	}
}

// Subscribers reports how many connections follow bookingID.
func (h *Hub) Subscribers(bookingID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.connections {
		if c.bookings[bookingID] {
			n++
		}
	}
	return n
}

func party(a booking.Actor, ev booking.Event) bool {
	switch a.Type {
	case booking.ActorAdmin:
		return true
	case booking.ActorCouple:
		return a.ID == ev.CoupleID
	case booking.ActorVendor:
		return a.ID == ev.VendorID
	default:
		return false
	}
}

// Serve runs the connection until the client goes away.
func (h *Hub) Serve(conn *websocket.Conn, actor booking.Actor) {
	c := &connection{
		actor:    actor,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		bookings: make(map[int64]bool),
	}
	h.register(c)
	h.loggerf("level=info msg=websocket connected actor=%s", actor)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *connection) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		h.loggerf("level=info msg=websocket disconnected actor=%s", c.actor)
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.loggerf("level=warn msg=websocket read failed actor=%s err=%v", c.actor, err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reply(c, &WSEvent{Type: EventError, Code: "INVALID_JSON", Message: "Failed to parse message"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			if msg.BookingID <= 0 {
				h.reply(c, &WSEvent{Type: EventError, Code: "INVALID_ID", Message: "booking_id is required"})
				continue
			}
			h.mu.Lock()
			c.bookings[msg.BookingID] = true
			h.mu.Unlock()
			h.reply(c, &WSEvent{Type: EventSubscribed, BookingID: msg.BookingID})
		case "unsubscribe":
			h.mu.Lock()
			delete(c.bookings, msg.BookingID)
			h.mu.Unlock()
		case "ping":
			h.reply(c, &WSEvent{Type: EventPong})
		default:
			h.reply(c, &WSEvent{Type: EventError, Code: "UNKNOWN_TYPE", Message: "Unknown message type: " + msg.Type})
		}
	}
}

// reply queues ev for c only. It runs on the read goroutine, so c.send is
// still open.
func (h *Hub) reply(c *connection, ev *WSEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
