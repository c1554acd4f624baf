// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
)

// DisplayDependencies defines the interface for public display control.
type DisplayDependencies interface {
	FreezeDisplay(ctx context.Context, actorID, eventID string) (model.DisplayState, error)
	UnfreezeDisplay(ctx context.Context, actorID, eventID string) (model.DisplayState, error)
	SetScene(ctx context.Context, actorID, eventID string, mode model.SceneMode, trackID string) (model.DisplayState, error)
	DisplayState(ctx context.Context, eventID string) (model.DisplayState, error)
}

// DisplayHandler handles public display requests.
type DisplayHandler struct {
	deps DisplayDependencies
}

// NewDisplayHandler creates a new display handler.
func NewDisplayHandler(deps DisplayDependencies) *DisplayHandler {
	return &DisplayHandler{deps: deps}
}

// sceneRequest mirrors the OpenAPI schema for POST /events/{event}/display/scene.
type sceneRequest struct {
	Mode    string `json:"mode"`
	TrackID string `json:"trackId"`
}

// HandleFreeze handles POST /events/{event}/display/freeze requests.
func (h *DisplayHandler) HandleFreeze(w http.ResponseWriter, r *http.Request) {
	const op = "api.freeze_display"
	h.respond(w, op)(h.deps.FreezeDisplay(r.Context(), ActorFrom(r.Context()), r.PathValue("event")))
}

// HandleUnfreeze handles POST /events/{event}/display/unfreeze requests.
func (h *DisplayHandler) HandleUnfreeze(w http.ResponseWriter, r *http.Request) {
	const op = "api.unfreeze_display"
	h.respond(w, op)(h.deps.UnfreezeDisplay(r.Context(), ActorFrom(r.Context()), r.PathValue("event")))
}

// HandleScene handles POST /events/{event}/display/scene requests.
func (h *DisplayHandler) HandleScene(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_scene"
	var req sceneRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.respond(w, op)(h.deps.SetScene(r.Context(), ActorFrom(r.Context()), r.PathValue("event"),
		model.SceneMode(req.Mode), req.TrackID))
}

// HandleGet handles GET /events/{event}/display requests.
func (h *DisplayHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_display"
	h.respond(w, op)(h.deps.DisplayState(r.Context(), r.PathValue("event")))
}

func (h *DisplayHandler) respond(w http.ResponseWriter, op string) func(model.DisplayState, error) {
	return func(d model.DisplayState, err error) {
		if err != nil {
			fail(w, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, types.FromDisplay(d))
	}
}
