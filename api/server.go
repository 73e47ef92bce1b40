package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/fxdesk/rfstrader/pkg/events"
	"github.com/fxdesk/rfstrader/pkg/execution"
	"github.com/fxdesk/rfstrader/pkg/quotes"
	"github.com/fxdesk/rfstrader/pkg/session"
)

// Server exposes the stream registry and blotter to UI collaborators over
// HTTP, plus a websocket feed of session events.
type Server struct {
	coordinator *session.Coordinator
	registry    *quotes.Registry
	ledger      *execution.Ledger
	bus         *events.Bus
	logger      *logrus.Logger
	port        string

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewServer(coordinator *session.Coordinator, registry *quotes.Registry, ledger *execution.Ledger, bus *events.Bus, logger *logrus.Logger, port string) *Server {
	s := &Server{
		coordinator: coordinator,
		registry:    registry,
		ledger:      ledger,
		bus:         bus,
		logger:      logger,
		port:        port,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
	s.subscribeEvents()
	return s
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/streams", s.handleStreams)
	mux.HandleFunc("/api/blotter", s.handleBlotter)
	mux.HandleFunc("/ws/events", s.handleEventsWS)

	handler := corsMiddleware(mux)

	s.logger.Infof("Starting API server on port %s", s.port)
	return http.ListenAndServe(":"+s.port, handler)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"session":   s.coordinator.State(),
		"timestamp": time.Now().UTC(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.registry.ListAll())
}

func (s *Server) handleBlotter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.ledger.List())
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	// Reader drains until the client goes away, then unregisters.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

type wsEvent struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
	Time    time.Time   `json:"time"`
}

func (s *Server) subscribeEvents() {
	s.bus.Subscribe(events.TopicLogon, func(e events.LogonEvent) { s.broadcast(events.TopicLogon, e) })
	s.bus.Subscribe(events.TopicLogout, func(e events.LogoutEvent) { s.broadcast(events.TopicLogout, e) })
	s.bus.Subscribe(events.TopicQuote, func(e events.QuoteEvent) { s.broadcast(events.TopicQuote, e) })
	s.bus.Subscribe(events.TopicQuoteCancel, func(e events.QuoteCancelEvent) { s.broadcast(events.TopicQuoteCancel, e) })
	s.bus.Subscribe(events.TopicReject, func(e events.RejectEvent) { s.broadcast(events.TopicReject, e) })
	s.bus.Subscribe(events.TopicExecution, func(e events.ExecutionEvent) { s.broadcast(events.TopicExecution, e) })
	s.bus.Subscribe(events.TopicProvider, func(e events.ProviderEvent) { s.broadcast(events.TopicProvider, e) })
}

func (s *Server) broadcast(topic string, payload interface{}) {
	msg := wsEvent{Topic: topic, Payload: payload, Time: time.Now().UTC()}
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.WithError(err).Debug("dropping websocket client")
			delete(s.clients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
