// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
)

// ScoreDependencies defines the interface for evaluator operations.
type ScoreDependencies interface {
	SubmitScores(ctx context.Context, in service.ScoreSubmission) (service.SubmitResult, error)
	RecordScan(ctx context.Context, evaluatorID, teamID, stageID string) (model.EvaluationAttempt, error)
	Progress(ctx context.Context, teamID, stageID string) (model.Progress, error)
}

// ScoresHandler handles score writes, scans and quorum progress.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// scoresRequest mirrors the OpenAPI schema for POST /stages/{stage}/teams/{team}/scores.
type scoresRequest struct {
	BatchID string                   `json:"batchId"`
	Scores  []service.CriterionScore `json:"scores"`
}

// HandleSubmit handles POST /stages/{stage}/teams/{team}/scores requests.
// The acting user is the evaluator.
func (h *ScoresHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_scores"
	var req scoresRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.SubmitScores(r.Context(), service.ScoreSubmission{
		EvaluatorID: ActorFrom(r.Context()),
		TeamID:      r.PathValue("team"),
		StageID:     r.PathValue("stage"),
		BatchID:     req.BatchID,
		Scores:      req.Scores,
	})
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleScan handles POST /stages/{stage}/teams/{team}/scan requests.
func (h *ScoresHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_scan"
	a, err := h.deps.RecordScan(r.Context(), ActorFrom(r.Context()), r.PathValue("team"), r.PathValue("stage"))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromAttempt(a))
}

// HandleProgress handles GET /stages/{stage}/teams/{team}/progress requests.
func (h *ScoresHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	const op = "api.progress"
	p, err := h.deps.Progress(r.Context(), r.PathValue("team"), r.PathValue("stage"))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromProgress(p))
}
