// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/types"
)

// StageDependencies defines the interface for stage clock operations.
type StageDependencies interface {
	GetStage(ctx context.Context, stageID string) (service.StageClock, error)
	PauseStage(ctx context.Context, cmd service.ClockCommand) (service.StageClock, error)
	ResumeStage(ctx context.Context, cmd service.ClockCommand) (service.StageClock, error)
	ExtendStage(ctx context.Context, cmd service.ClockCommand, minutes int) (service.StageClock, error)
	SetStageDeadline(ctx context.Context, cmd service.ClockCommand, deadline time.Time) (service.StageClock, error)
}

// StagesHandler handles stage reads and clock mutations.
type StagesHandler struct {
	deps StageDependencies
}

// NewStagesHandler creates a new stages handler.
func NewStagesHandler(deps StageDependencies) *StagesHandler {
	return &StagesHandler{deps: deps}
}

// clockRequest mirrors the OpenAPI schema for the stage clock mutations.
type clockRequest struct {
	ExpectedVersion int64      `json:"expectedVersion"`
	Minutes         int        `json:"minutes,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
}

func stageView(c service.StageClock) types.Stage { //nolint:gocritic // hugeParam: read model
	return types.FromStage(c.Stage, c.EffectiveDeadline, c.Remaining, c.ServerTime)
}

// HandleGet handles GET /stages/{stage} requests.
func (h *StagesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stage"
	c, err := h.deps.GetStage(r.Context(), r.PathValue("stage"))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, stageView(c))
}

// HandlePause handles POST /stages/{stage}/pause requests.
func (h *StagesHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "api.pause_stage", func(ctx context.Context, cmd service.ClockCommand, _ clockRequest) (service.StageClock, error) {
		return h.deps.PauseStage(ctx, cmd)
	})
}

// HandleResume handles POST /stages/{stage}/resume requests.
func (h *StagesHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "api.resume_stage", func(ctx context.Context, cmd service.ClockCommand, _ clockRequest) (service.StageClock, error) {
		return h.deps.ResumeStage(ctx, cmd)
	})
}

// HandleExtend handles POST /stages/{stage}/extend requests.
func (h *StagesHandler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "api.extend_stage", func(ctx context.Context, cmd service.ClockCommand, req clockRequest) (service.StageClock, error) {
		return h.deps.ExtendStage(ctx, cmd, req.Minutes)
	})
}

// HandleDeadline handles POST /stages/{stage}/deadline requests.
func (h *StagesHandler) HandleDeadline(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "api.set_stage_deadline", func(ctx context.Context, cmd service.ClockCommand, req clockRequest) (service.StageClock, error) {
		if req.Deadline == nil {
			return service.StageClock{}, fmt.Errorf("%w: missing deadline", ErrBadRequest)
		}
		return h.deps.SetStageDeadline(ctx, cmd, *req.Deadline)
	})
}

func (h *StagesHandler) mutate(w http.ResponseWriter, r *http.Request, op string,
	apply func(context.Context, service.ClockCommand, clockRequest) (service.StageClock, error),
) {
	var req clockRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	cmd := service.ClockCommand{
		ActorID:         ActorFrom(r.Context()),
		StageID:         r.PathValue("stage"),
		ExpectedVersion: req.ExpectedVersion,
	}
	c, err := apply(r.Context(), cmd, req)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, stageView(c))
}
