package api

import (
	"net/http"

	"github.com/okian/padcal/internal/domain/session"
	"github.com/okian/padcal/internal/domain/types"
)

// SessionHandler drives the interactive threshold drag.
type SessionHandler struct {
	deps Dependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps Dependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type beginRequest struct {
	Sensor *int   `json:"sensor"`
	Edit   string `json:"edit"`
}

type moveRequest struct {
	Y      float64        `json:"y"`
	Extent session.Extent `json:"extent"`
}

type beginResponse struct {
	Started bool               `json:"started"`
	Session *types.SessionView `json:"session,omitempty"`
}

type moveResponse struct {
	Moved   bool               `json:"moved"`
	Session *types.SessionView `json:"session,omitempty"`
}

type endResponse struct {
	Committed bool `json:"committed"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// HandleBegin handles POST /session. A drag already in flight is reported
// as started=false, not as an error.
func (h *SessionHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	const op = "api.begin_session"
	var req beginRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Sensor == nil || *req.Sensor < 0 {
		writeServiceError(w, NewKind(op, ErrBadRequest))
		return
	}
	edit, ok := session.ParseEdit(req.Edit)
	if !ok {
		writeServiceError(w, NewKind(op, ErrBadRequest))
		return
	}
	started, err := h.deps.BeginDrag(r.Context(), *req.Sensor, edit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, beginResponse{Started: started, Session: h.current()})
}

// HandleMove handles POST /session/move.
func (h *SessionHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	const op = "api.move_session"
	var req moveRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	moved, err := h.deps.MoveDrag(r.Context(), req.Y, req.Extent)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moveResponse{Moved: moved, Session: h.current()})
}

// HandleEnd handles POST /session/end.
func (h *SessionHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	committed, err := h.deps.EndDrag(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, endResponse{Committed: committed})
}

// HandleCancel handles DELETE /session.
func (h *SessionHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cancelResponse{Cancelled: h.deps.CancelDrag(r.Context())})
}

func (h *SessionHandler) current() *types.SessionView {
	return h.deps.Snapshot(false).Session
}
