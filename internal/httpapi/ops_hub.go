package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/model"
)

// opsClientBuffer bounds how many pending broadcast messages a slow ops
// dashboard client may queue before being dropped, grounded on the
// teacher's WebSocketBufferSize constant (server/hub.go).
const opsClientBuffer = 256

// OpsHub fans out command lifecycle and agent status-change events to
// connected operator dashboards, generalized from the teacher's
// Hub/Client pair (server/hub.go) which broadcast dashboard state instead.
type OpsHub struct {
	mu         sync.RWMutex
	clients    map[*opsClient]bool
	register   chan *opsClient
	unregister chan *opsClient
	broadcast  chan []byte
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

type opsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewOpsHub(log *zap.Logger) *OpsHub {
	return &OpsHub{
		clients:    make(map[*opsClient]bool),
		register:   make(chan *opsClient),
		unregister: make(chan *opsClient),
		broadcast:  make(chan []byte, opsClientBuffer),
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		log:        log,
	}
}

// Run drives the hub's event loop until stop is closed.
func (h *OpsHub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

type opsEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func (h *OpsHub) broadcastEvent(eventType string, data any) {
	raw, err := json.Marshal(opsEvent{Type: eventType, Timestamp: time.Now(), Data: data})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- raw:
	default:
	}
}

// BroadcastCommandEvent notifies ops dashboards of a command lifecycle
// transition.
func (h *OpsHub) BroadcastCommandEvent(kind string, cmd *model.Command) {
	h.broadcastEvent("command."+kind, cmd)
}

// BroadcastAgentEvent notifies ops dashboards of an agent status change.
func (h *OpsHub) BroadcastAgentEvent(kind string, a *model.Agent) {
	h.broadcastEvent("agent."+kind, a)
}

func (s *Server) handleOpsStream(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok || !identity.IsAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.Hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("ops stream upgrade failed", zap.Error(err))
		return
	}

	c := &opsClient{conn: conn, send: make(chan []byte, opsClientBuffer)}
	s.Hub.register <- c

	go func() {
		defer func() {
			s.Hub.unregister <- c
			conn.Close()
		}()
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() {
			s.Hub.unregister <- c
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
