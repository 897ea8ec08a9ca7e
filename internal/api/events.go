package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"pkt.systems/pslog"
)

const (
	hubSendTimeout = 5 * time.Second
	hubBufferSize  = 16
)

// HubEvent is a dashboard notification about submission activity.
type HubEvent struct {
	Type         string    `json:"type"`
	SubmissionID string    `json:"submission_id"`
	Status       string    `json:"status,omitempty"`
	At           time.Time `json:"at"`
}

// Hub fans submission events out to connected dashboard clients. Slow
// subscribers are dropped rather than blocking the broadcast.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan HubEvent]struct{}
	logger      pslog.Logger
}

// NewHub constructs a Hub.
func NewHub(logger pslog.Logger) *Hub {
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	return &Hub{
		subscribers: make(map[chan HubEvent]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener. The returned cancel function must be
// called when the listener goes away.
func (h *Hub) Subscribe() (<-chan HubEvent, func()) {
	ch := make(chan HubEvent, hubBufferSize)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers an event to all subscribers. A subscriber with a full
// buffer is disconnected.
func (h *Hub) Broadcast(ev HubEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			delete(h.subscribers, ch)
			close(ch)
			h.logger.Warn("dropping slow event subscriber")
		}
	}
}

// SubscriberCount reports the number of connected listeners.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (s *HTTPServer) handleAdminEvents(w http.ResponseWriter, r *http.Request) {
	username, err := s.requireOperator(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	logger := s.Logger.With("operator", username)
	logger.Debug("event subscriber connected")

	events, cancel := s.Hub.Subscribe()
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, hubSendTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancelWrite()
			if err != nil {
				logger.Debug("event write failed", "err", err)
				return
			}
		}
	}
}
