// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
)

// CeremonyDependencies defines the interface for reveal ceremony operations.
type CeremonyDependencies interface {
	StartCeremony(ctx context.Context, actorID, eventID string, mode model.RevealMode, limit int) (model.CeremonyState, error)
	RevealNext(ctx context.Context, actorID, eventID string) (model.Winner, model.CeremonyState, error)
	StopCeremony(ctx context.Context, actorID, eventID string) (model.CeremonyState, error)
	CeremonyState(ctx context.Context, eventID string) (model.CeremonyState, error)
}

// CeremonyHandler handles reveal ceremony requests.
type CeremonyHandler struct {
	deps         CeremonyDependencies
	defaultLimit int
}

// NewCeremonyHandler creates a new ceremony handler.
func NewCeremonyHandler(deps CeremonyDependencies, defaultLimit int) *CeremonyHandler {
	return &CeremonyHandler{deps: deps, defaultLimit: defaultLimit}
}

// startRequest mirrors the OpenAPI schema for POST /events/{event}/ceremony/start.
type startRequest struct {
	Mode  string `json:"mode"`
	Limit int    `json:"limit"`
}

type revealResponse struct {
	Winner model.Winner   `json:"winner"`
	State  types.Ceremony `json:"state"`
}

// HandleStart handles POST /events/{event}/ceremony/start requests.
// Mode defaults to overall and limit to the configured default.
func (h *CeremonyHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_ceremony"
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	mode := model.RevealMode(req.Mode)
	if mode == "" {
		mode = model.RevealOverall
	}
	if req.Limit == 0 {
		req.Limit = h.defaultLimit
	}
	st, err := h.deps.StartCeremony(r.Context(), ActorFrom(r.Context()), r.PathValue("event"), mode, req.Limit)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, types.FromCeremony(st))
}

// HandleReveal handles POST /events/{event}/ceremony/reveal requests.
func (h *CeremonyHandler) HandleReveal(w http.ResponseWriter, r *http.Request) {
	const op = "api.reveal_next"
	winner, st, err := h.deps.RevealNext(r.Context(), ActorFrom(r.Context()), r.PathValue("event"))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, revealResponse{Winner: winner, State: types.FromCeremony(st)})
}

// HandleStop handles POST /events/{event}/ceremony/stop requests.
func (h *CeremonyHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	const op = "api.stop_ceremony"
	st, err := h.deps.StopCeremony(r.Context(), ActorFrom(r.Context()), r.PathValue("event"))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromCeremony(st))
}

// HandleGet handles GET /events/{event}/ceremony requests.
func (h *CeremonyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ceremony"
	st, err := h.deps.CeremonyState(r.Context(), r.PathValue("event"))
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromCeremony(st))
}
