package dashboard

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mschirtzinger/taskboard/internal/events"
)

// Handler turns lifecycle events into dashboard messages. It implements
// events.Notifier.
type Handler struct {
	server *Server
	logger zerolog.Logger
}

var _ events.Notifier = (*Handler)(nil)

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger zerolog.Logger) *Handler {
	return &Handler{
		server: server,
		logger: logger.With().Str("component", "dashboard-events").Logger(),
	}
}

// Notify queues e for broadcast and returns at once. Events that change task
// counts are followed by a fresh stats frame computed off the caller's
// goroutine.
func (h *Handler) Notify(e events.Event) {
	h.logger.Debug().Str("type", string(e.Type)).Msg("event")

	msg := Message{
		ID:        uuid.NewString(),
		Type:      e.Type,
		Timestamp: time.Now().UTC(),
	}
	if e.Data != nil {
		data, err := json.Marshal(e.Data)
		if err != nil {
			h.logger.Error().Err(err).Str("type", string(e.Type)).Msg("failed to marshal event data")
			return
		}
		msg.Data = data
	}
	if affectsStats(e.Type) {
		h.server.broadcastWithStats(msg)
		return
	}
	h.server.Broadcast(msg)
}

func affectsStats(t events.Type) bool {
	switch t {
	case events.TaskCreated, events.TaskUpdated, events.TaskDeleted, events.TasksBulkUpdated:
		return true
	}
	return false
}
