package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/tally/internal/domain/checkpoint"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// maxExtendMinutes is the largest extension a time.Duration can hold.
const maxExtendMinutes = math.MaxInt64 / int64(time.Minute)

// ClockCommand identifies who mutates which stage clock, at which version.
type ClockCommand struct {
	ActorID         string `validate:"required"`
	StageID         string `validate:"required"`
	ExpectedVersion int64  `validate:"min=1"`
}

// StageClock is a stage together with its derived clock view.
type StageClock struct {
	Stage             model.Stage
	EffectiveDeadline time.Time
	Remaining         time.Duration
	ServerTime        time.Time
}

func (s *Service) stageClock(st model.Stage) StageClock {
	now := s.clock()
	c := checkpoint.FromStage(st)
	return StageClock{
		Stage:             st,
		EffectiveDeadline: c.EffectiveDeadline(),
		Remaining:         c.Remaining(now),
		ServerTime:        now,
	}
}

// GetStage returns a stage and its clock view.
func (s *Service) GetStage(ctx context.Context, stageID string) (StageClock, error) {
	if err := s.ready(); err != nil {
		return StageClock{}, err
	}
	st, err := s.store.GetStage(ctx, stageID)
	if err != nil {
		return StageClock{}, classify(fmt.Errorf("stage %s: %w", stageID, err))
	}
	return s.stageClock(st), nil
}

// PauseStage freezes the effective deadline at the current instant.
func (s *Service) PauseStage(ctx context.Context, cmd ClockCommand) (StageClock, error) {
	return s.mutateClock(ctx, "pause", cmd, func(c *checkpoint.Clock, now time.Time) error {
		return c.Pause(now)
	})
}

// ResumeStage shifts the deadline by the paused duration.
func (s *Service) ResumeStage(ctx context.Context, cmd ClockCommand) (StageClock, error) {
	return s.mutateClock(ctx, "resume", cmd, func(c *checkpoint.Clock, now time.Time) error {
		return c.Resume(now)
	})
}

// ExtendStage moves the deadline by minutes in either state.
func (s *Service) ExtendStage(ctx context.Context, cmd ClockCommand, minutes int) (StageClock, error) {
	if minutes < 1 || int64(minutes) > maxExtendMinutes {
		return StageClock{}, fmt.Errorf("%w: extension must be 1 to %d minutes, got %d", ErrValidation, maxExtendMinutes, minutes)
	}
	return s.mutateClock(ctx, "extend", cmd, func(c *checkpoint.Clock, _ time.Time) error {
		return c.Extend(time.Duration(minutes) * time.Minute)
	})
}

// SetStageDeadline sets an absolute deadline and clears any pause.
func (s *Service) SetStageDeadline(ctx context.Context, cmd ClockCommand, deadline time.Time) (StageClock, error) {
	return s.mutateClock(ctx, "set_deadline", cmd, func(c *checkpoint.Clock, _ time.Time) error {
		return c.SetDeadline(deadline.UTC().Truncate(time.Millisecond))
	})
}

func (s *Service) mutateClock(ctx context.Context, op string, cmd ClockCommand, apply func(*checkpoint.Clock, time.Time) error) (out StageClock, err error) {
	ctx, span := s.tracer.Start(ctx, "Service.StageClock", trace.WithAttributes(
		attribute.String("clock.op", op),
		attribute.String("stage.id", cmd.StageID),
		attribute.Int64("stage.version", cmd.ExpectedVersion),
	))
	defer func() {
		metrics.RecordClockOperation(op, Kind(err))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := s.ready(); err != nil {
		return StageClock{}, err
	}
	if err := s.validate.Struct(cmd); err != nil {
		return StageClock{}, validationError("clock command", err)
	}

	st, err := s.store.GetStage(ctx, cmd.StageID)
	if err != nil {
		return StageClock{}, classify(fmt.Errorf("stage %s: %w", cmd.StageID, err))
	}
	if err := s.requireOwner(ctx, st.EventID, cmd.ActorID); err != nil {
		return StageClock{}, err
	}
	if st.Version != cmd.ExpectedVersion {
		return StageClock{}, fmt.Errorf("%w: stage %s is at version %d, not %d", ErrConflict, st.ID, st.Version, cmd.ExpectedVersion)
	}

	now := s.clock()
	c := checkpoint.FromStage(st)
	if err := apply(&c, now); err != nil {
		return StageClock{}, classify(err)
	}
	updated, err := s.store.UpdateStageClock(ctx, st.ID, cmd.ExpectedVersion, c.Deadline, c.PausedAt)
	if err != nil {
		return StageClock{}, classify(err)
	}
	s.invalidateBoard(updated.EventID)

	s.logger.Info(ctx, "stage clock updated",
		logger.String("op", op),
		logger.String("stage_id", updated.ID),
		logger.String("actor_id", cmd.ActorID),
		logger.Time("deadline", updated.Deadline),
		logger.Bool("paused", updated.Paused()),
		logger.Int64("version", updated.Version),
	)
	s.notifyAll(ctx, model.NotifyCheckpointUpdated, updated.EventID, map[string]any{"stageId": updated.ID})
	return s.stageClock(updated), nil
}

// requireOwner allows only the organizer of eventID.
func (s *Service) requireOwner(ctx context.Context, eventID, actorID string) error {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return classify(fmt.Errorf("event %s: %w", eventID, err))
	}
	if actorID == "" || ev.OwnerID != actorID {
		return fmt.Errorf("%w: %q does not own event %s", ErrForbidden, actorID, eventID)
	}
	return nil
}
