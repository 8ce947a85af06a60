package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/bloodbank-api/internal/broadcast"
	"github.com/harentsoaR/bloodbank-api/internal/middleware"
	"github.com/harentsoaR/bloodbank-api/internal/models"
)

// KeepAliveInterval spaces comment frames on an idle event stream.
const KeepAliveInterval = 25 * time.Second

type streamEvent struct {
	name string
	data json.RawMessage
}

// eventOwners holds the payload fields that tie an event to accounts.
type eventOwners struct {
	ID         string           `json:"id"`
	UserID     string           `json:"userId"`
	DonorID    string           `json:"donorId"`
	SenderID   string           `json:"senderId"`
	ReceiverID string           `json:"receiverId"`
	Deleted    string           `json:"deleted"`
	Requester  models.Requester `json:"requester"`
}

// visibleTo reports whether actor may see event. Stock and hospital events
// are public; the rest follow the scoping of the matching list actions.
func visibleTo(actor models.Identity, event string, data json.RawMessage) bool {
	if event == broadcast.EventStocksUpdated || event == broadcast.EventHospitalsUpdated {
		return true
	}
	var o eventOwners
	if err := json.Unmarshal(data, &o); err != nil {
		return actor.Role == models.RoleAdmin
	}
	if event == broadcast.EventChatMessage {
		return o.SenderID == actor.ID || o.ReceiverID == actor.ID
	}
	if actor.Role == models.RoleAdmin {
		return true
	}
	switch event {
	case broadcast.EventRequestsUpdated:
		return o.Requester.ID == actor.ID
	case broadcast.EventAppointmentsUpdated:
		return o.DonorID == actor.ID
	case broadcast.EventFeedbackUpdated, broadcast.EventUserStatus:
		return o.UserID == actor.ID
	case broadcast.EventUsersUpdated:
		return o.ID == actor.ID || o.Deleted == actor.ID
	}
	return false
}

// Events streams bus events to the client as server-sent events until the
// client goes away. Each event is filtered by visibleTo. Events are dropped
// for a client that reads too slowly.
func (h *Handler) Events(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	actor, err := h.Service.Actor(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	ch := make(chan streamEvent, 32)
	forward := func(event string, data json.RawMessage) {
		if !visibleTo(actor, event, data) {
			return
		}
		select {
		case ch <- streamEvent{name: event, data: data}:
		default:
		}
	}
	ids := make(map[string]broadcast.SubscriptionID, len(broadcast.Events))
	for _, ev := range broadcast.Events {
		ids[ev] = h.Bus.Subscribe(ev, forward)
	}
	defer func() {
		for ev, id := range ids {
			h.Bus.Unsubscribe(ev, id)
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-ch:
			c.SSEvent(ev.name, string(ev.data))
			return true
		case <-keepAlive.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		}
	})
}
