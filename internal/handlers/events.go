package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/GregMSThompson/gridboard/internal/events"
	"github.com/GregMSThompson/gridboard/internal/layout"
	"github.com/GregMSThompson/gridboard/pkg/logger"
)

const (
	streamBuffer      = 128
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 5 * time.Second
)

// StreamMessage is one frame on the event stream, in either direction.
type StreamMessage struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Event     *events.Event   `json:"event,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Events upgrades to a websocket carrying the dashboard's bus events.
// Clients may send "pointer" frames with a PointerEvent payload and
// "observe" frames with {"width": n}; replies come back on the stream.
func (h *dashboardHandlers) Events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "dashboardId")
	// Resolve the dashboard before upgrading so unknown ids get a 404.
	if _, err := h.DashboardSvc.GetDashboard(r.Context(), id); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		// Accept has already written the failure response.
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "connection closed")

	log := logger.FromContext(r.Context()).With("dashboard_id", id)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan StreamMessage, streamBuffer)
	send := func(m StreamMessage) {
		m.Timestamp = time.Now()
		select {
		case out <- m:
		default:
			// Drop if channel full
		}
	}

	unsub, err := h.DashboardSvc.Subscribe(id, func(ev events.Event) {
		send(StreamMessage{Type: ev.Topic, Event: &ev})
	})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "subscription failed")
		return
	}
	defer unsub()

	send(StreamMessage{Type: "connected"})

	go func() {
		defer cancel()
		for {
			var msg StreamMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
					log.Debug("event stream read failed", "error", err)
				}
				return
			}
			h.handleStreamMessage(ctx, id, msg, send)
		}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		var msg StreamMessage
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg = StreamMessage{Type: "heartbeat", Timestamp: time.Now()}
		case msg = <-out:
		}
		wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, conn, msg)
		wcancel()
		if err != nil {
			return
		}
	}
}

func (h *dashboardHandlers) handleStreamMessage(ctx context.Context, id string, msg StreamMessage, send func(StreamMessage)) {
	reply := func(typ string, v any, err error) {
		m := StreamMessage{Type: typ}
		if err != nil {
			m.Error = err.Error()
		} else if b, merr := json.Marshal(v); merr == nil {
			m.Payload = b
		}
		send(m)
	}

	switch msg.Type {
	case "ping":
		send(StreamMessage{Type: "pong"})
	case "pointer":
		var ev layout.PointerEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			reply("transition", nil, err)
			return
		}
		tr, err := h.DashboardSvc.HandlePointer(ctx, id, ev)
		reply("transition", tr, err)
	case "observe":
		var req struct {
			Width float64 `json:"width"`
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			reply("observed", nil, err)
			return
		}
		resp, err := h.DashboardSvc.Observe(ctx, id, req.Width)
		reply("observed", resp, err)
	default:
		reply("error", nil, errors.New("unknown message type "+msg.Type))
	}
}
