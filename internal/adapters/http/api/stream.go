// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	"github.com/okian/tally/pkg/logger"
)

// StreamHandler upgrades requests into websocket subscriptions.
type StreamHandler struct {
	subscriber Subscriber
	logger     logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(subscriber Subscriber, l logger.Logger) *StreamHandler {
	return &StreamHandler{subscriber: subscriber, logger: l}
}

// channel serves GET /ws/.../{event} on the channel derived from the event id.
func (h *StreamHandler) channel(name func(eventID string) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.subscribe"
		if h.subscriber == nil {
			fail(w, NewKind(op, ErrUnavailable))
			return
		}
		ch := name(r.PathValue("event"))
		if err := h.subscriber.Serve(w, r, ch); err != nil {
			// The upgrader has already answered the request.
			h.logger.Warn(r.Context(), "subscription failed",
				logger.String("channel", ch), logger.Error(err))
		}
	}
}
