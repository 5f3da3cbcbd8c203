// Package api pkg/api/live.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mfreeman451/netmon/pkg/db"
)

const (
	wsWriteDeadline = 10 * time.Second
	wsReadDeadline  = 60 * time.Second
	wsPingInterval  = 30 * time.Second

	wsChannelBuffer   = 8
	wsBroadcastBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// No Origin header means a non-browser client (curl, test tools).
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// SnapshotHub pushes each stored status snapshot to connected websocket
// clients. All data writes to a connection happen on the hub's run
// goroutine; a websocket connection permits only one concurrent writer.
type SnapshotHub struct {
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
}

func NewSnapshotHub() *SnapshotHub {
	h := &SnapshotHub{
		register:   make(chan *websocket.Conn, wsChannelBuffer),
		unregister: make(chan *websocket.Conn, wsChannelBuffer),
		broadcast:  make(chan []byte, wsBroadcastBuffer),
		done:       make(chan struct{}),
		clients:    make(map[*websocket.Conn]bool),
	}

	go h.run()

	return h
}

// run is the hub's single writer loop. Only this goroutine mutates the
// client set or writes data frames.
func (h *SnapshotHub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}

			h.clients = make(map[*websocket.Conn]bool)
			h.mu.Unlock()

			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("Live client connected (total: %d)", count)
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("Live client disconnected (total: %d)", count)
		case message := <-h.broadcast:
			h.mu.RLock()

			var failed []*websocket.Conn

			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))

				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("Live client write error: %v", err)
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			for _, conn := range failed {
				select {
				case h.unregister <- conn:
				default:
				}
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *SnapshotHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Broadcast queues a snapshot for delivery to every connected client. The
// signature matches monitor.SnapshotListener so the hub can be registered
// directly; it never blocks ingest, a full queue drops the message.
func (h *SnapshotHub) Broadcast(snapshot db.StatusSnapshot) {
	message, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("Error marshaling snapshot for broadcast: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("Broadcast queue full, dropping snapshot")
	}
}

// Shutdown stops the run loop and closes every client connection.
func (h *SnapshotHub) Shutdown() {
	close(h.done)
}

func (s *APIServer) getLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	s.hub.register <- conn

	defer func() {
		select {
		case s.hub.unregister <- conn:
		default:
			conn.Close()
		}
	}()

	done := make(chan struct{})
	defer close(done)

	// Keepalive pings so idle connections survive intermediaries.
	// WriteControl is safe to call concurrently with the hub's data writes.
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(wsWriteDeadline)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	// The read loop only services control frames and detects close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Live client read error: %v", err)
			}

			break
		}
	}
}
