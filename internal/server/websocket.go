package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Rickardjd/Easy-IP/internal/logging"
	"github.com/Rickardjd/Easy-IP/internal/tracker"
)

const writeWait = 10 * time.Second

// LAN tool, origins are not meaningful here
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// scanEvent is the message pushed to every WebSocket client when a
// scan completes.
type scanEvent struct {
	Type   string          `json:"type"`
	Report *tracker.Report `json:"report"`
}

// hub fans scan events out to connected WebSocket clients.
type hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	events   chan scanEvent
	done     chan struct{}
	doneOnce sync.Once
}

func newHub() *hub {
	return &hub{
		clients: make(map[*websocket.Conn]bool),
		events:  make(chan scanEvent, 8),
		done:    make(chan struct{}),
	}
}

func (h *hub) run() {
	for {
		select {
		case event := <-h.events:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(event); err != nil {
					logging.Debug("Dropping WebSocket client", zap.Error(err))
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		case <-h.done:
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.clients = make(map[*websocket.Conn]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *hub) broadcastScan(report *tracker.Report) {
	select {
	case h.events <- scanEvent{Type: "scan", Report: report}:
	default:
		// Slow hub; scan results are queryable anyway
	}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

func (h *hub) close() {
	h.doneOnce.Do(func() { close(h.done) })
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	logging.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))
	s.hub.add(conn)

	// Clients only listen; the read loop just detects disconnects.
	go func() {
		defer func() {
			s.hub.remove(conn)
			logging.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
