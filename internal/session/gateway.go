// Package session implements the per-connection gateway of spec.md §4.E:
// authenticated bidirectional channels, a per-connection joinedRooms set,
// and the socket event handlers of §6. Grounded on the teacher's
// internal/ws/handler.go (Hub/Client, register/unregister channels,
// writePump) and internal/ws/pool_handler.go (readPump, message-type
// switch), generalized from "one client bound to one game" to "one client,
// many joined rooms" since duel rooms here are ephemeral 1v1 matches a
// client can rejoin across reconnects rather than a single fixed game.
package session

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/codearena/core/internal/config"
	"github.com/codearena/core/internal/matchmaking"
	"github.com/codearena/core/internal/middleware"
	"github.com/codearena/core/internal/ports"
	"github.com/codearena/core/internal/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// InboundMessage is the wire envelope for a client->server event. ID, when
// present, correlates the server's ack response to this message (spec.md
// §4.E "invokes an acknowledgement callback exactly once per event").
type InboundMessage struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AckResponse is the envelope sent back for an event carrying an ID.
type AckResponse struct {
	ID   string      `json:"id,omitempty"`
	Type string      `json:"type"`
	Ack  interface{} `json:"ack"`
}

// EmitMessage is an unsolicited server->client push (matchFound,
// matchFinished, opponentDisconnected, …).
type EmitMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client is one authenticated connection.
type Client struct {
	conn     *websocket.Conn
	userID   string
	username string
	rating   int
	send     chan []byte

	mu          sync.Mutex
	joinedRooms map[string]bool
	queuedAt    time.Time
	inQueue     bool
}

// Hub tracks every connected client and every room's current members, so a
// Room's Broadcaster calls land on exactly the connections that joined it.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // userID -> client
	rooms   map[string]map[string]*Client // roomID -> userID -> client

	register   chan *Client
	unregister chan *Client

	gw *Gateway
}

func newHub(gw *Gateway) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		gw:         gw,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if old, exists := h.clients[c.userID]; exists {
				old.conn.Close()
			}
			h.clients[c.userID] = c
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.userID]; ok && cur == c {
				delete(h.clients, c.userID)
				for roomID, members := range h.rooms {
					delete(members, c.userID)
					if len(members) == 0 {
						delete(h.rooms, roomID)
					}
				}
				close(c.send)
			}
			h.mu.Unlock()
			h.gw.handleDisconnect(c)
		}
	}
}

// joinRoom records that userID's connection is now a member of roomID's
// broadcast set.
func (h *Hub) joinRoom(roomID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[userID]
	if !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][userID] = c
	c.mu.Lock()
	c.joinedRooms[roomID] = true
	c.mu.Unlock()
}

// BroadcastToRoom implements room.Broadcaster.
func (h *Hub) BroadcastToRoom(roomID, event string, payload interface{}) {
	data, err := json.Marshal(EmitMessage{Type: event, Data: payload})
	if err != nil {
		log.Printf("[session] marshal broadcast for room %s: %v", roomID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[roomID] {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) sendTo(userID string, event string, payload interface{}) {
	data, err := json.Marshal(EmitMessage{Type: event, Data: payload})
	if err != nil {
		return
	}
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Gateway wires the session layer to its collaborators: the matchmaking
// queue, the room manager, and auth config.
type Gateway struct {
	hub *Hub

	cfg   *config.Config
	store ports.Store
	clock ports.Clock
	queue *matchmaking.Queue
	rooms *room.Manager

	// matchmakingMu serializes the pairing protocol's critical section
	// (spec.md §4.B: "holding a mutex over the queue") across concurrent
	// findMatch calls from different connections.
	matchmakingMu sync.Mutex
	deadlines     map[string]ports.Timer
}

// New builds a session Gateway.
func New(cfg *config.Config, store ports.Store, clock ports.Clock, queue *matchmaking.Queue, rooms *room.Manager) *Gateway {
	gw := &Gateway{
		cfg:       cfg,
		store:     store,
		clock:     clock,
		queue:     queue,
		rooms:     rooms,
		deadlines: make(map[string]ports.Timer),
	}
	gw.hub = newHub(gw)
	return gw
}

// Broadcaster exposes the Hub as a room.Broadcaster for wiring into
// room.NewManager.
func (gw *Gateway) Broadcaster() room.Broadcaster { return gw.hub }

// HandleWebSocket is the gin handler for the gateway's upgrade endpoint.
func (gw *Gateway) HandleWebSocket(c *gin.Context) {
	token := tokenFromQueryOrRequest(c)
	userID, err := middleware.VerifyToken(gw.cfg, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"statusCode": http.StatusUnauthorized, "success": false, "message": "Unauthorized"})
		return
	}

	user, err := gw.store.GetUser(c.Request.Context(), userID)
	if err != nil || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"statusCode": http.StatusUnauthorized, "success": false, "message": "Unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[session] upgrade error: %v", err)
		return
	}

	client := &Client{
		conn:        conn,
		userID:      user.ID,
		username:    user.Username,
		rating:      user.Rating,
		send:        make(chan []byte, 256),
		joinedRooms: make(map[string]bool),
	}

	gw.hub.register <- client
	go client.writePump()
	go gw.readPump(client)
}

// tokenFromQueryOrRequest allows the websocket upgrade (which cannot set
// custom headers from a browser) to carry the bearer token as a query
// param, falling back to the cookie/header path HTTP handlers use.
func tokenFromQueryOrRequest(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	if cookie, err := c.Cookie("accessToken"); err == nil && cookie != "" {
		return cookie
	}
	auth := c.GetHeader("Authorization")
	if len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}
	return ""
}

func (c *Client) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (gw *Gateway) readPump(c *Client) {
	defer func() {
		gw.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		ack := gw.dispatch(c, msg)
		if msg.ID != "" {
			resp, _ := json.Marshal(AckResponse{ID: msg.ID, Type: msg.Type, Ack: ack})
			select {
			case c.send <- resp:
			default:
			}
		}
	}
}
