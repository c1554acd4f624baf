package service

import (
	"context"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// notify queues a notification. It never blocks and never fails the caller.
func (s *Service) notify(ctx context.Context, name, eventID string, payload map[string]any, channels ...string) {
	s.mu.RLock()
	q, started := s.queue, s.started
	s.mu.RUnlock()
	if !started {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	n := model.Notification{
		ID:       s.newID(),
		Name:     name,
		EventID:  eventID,
		Channels: channels,
		At:       s.clock(),
		Payload:  payload,
	}
	if !q.Enqueue(context.WithoutCancel(ctx), n) {
		metrics.RecordNotificationDropped()
		s.logger.Warn(ctx, "notification dropped",
			logger.String("notification", name),
			logger.String("event_id", eventID),
		)
	}
}

func (s *Service) notifyEvent(ctx context.Context, name, eventID string, payload map[string]any) {
	s.notify(ctx, name, eventID, payload, model.EventChannel(eventID))
}

func (s *Service) notifyDisplay(ctx context.Context, name, eventID string, payload map[string]any) {
	s.notify(ctx, name, eventID, payload, model.DisplayChannel(eventID))
}

func (s *Service) notifyAll(ctx context.Context, name, eventID string, payload map[string]any) {
	s.notify(ctx, name, eventID, payload, model.EventChannel(eventID), model.DisplayChannel(eventID))
}
