package api

import (
	"net/http"
	"strings"

	"github.com/okian/padcal/internal/domain/release"
)

// CalibrationHandler serves the pad snapshot and direct threshold edits.
type CalibrationHandler struct {
	deps Dependencies
}

// NewCalibrationHandler creates a new calibration handler.
func NewCalibrationHandler(deps Dependencies) *CalibrationHandler {
	return &CalibrationHandler{deps: deps}
}

type thresholdsRequest struct {
	Activation *float64 `json:"activation"`
	Release    *float64 `json:"release"`
}

type buttonRequest struct {
	Button *int `json:"button"`
}

type releaseModeRequest struct {
	Mode  string   `json:"mode"`
	Ratio *float64 `json:"ratio"`
}

// HandleGetPad handles GET /pad. History is included unless history=false.
func (h *CalibrationHandler) HandleGetPad(w http.ResponseWriter, r *http.Request) {
	withHistory := !strings.EqualFold(r.URL.Query().Get("history"), "false")
	writeJSON(w, http.StatusOK, h.deps.Snapshot(withHistory))
}

// HandleSetThresholds handles PUT /sensors/{sensor}/thresholds. A missing
// release keeps the sensor's current one; None and Global modes re-derive it
// anyway.
func (h *CalibrationHandler) HandleSetThresholds(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_thresholds"
	sensor, err := sensorParam(r, op)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req thresholdsRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Activation == nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, errMissingActivation))
		return
	}
	rel := h.currentRelease(sensor, *req.Activation)
	if req.Release != nil {
		rel = *req.Release
	}
	if err := h.deps.SetThresholds(r.Context(), sensor, *req.Activation, rel); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sensorView(sensor))
}

// currentRelease returns sensor's committed release, or fallback for a
// sensor the pad does not have.
func (h *CalibrationHandler) currentRelease(sensor int, fallback float64) float64 {
	sensors := h.deps.Snapshot(false).Sensors
	if sensor >= len(sensors) {
		return fallback
	}
	return sensors[sensor].Release
}

// HandleSetButton handles PUT /sensors/{sensor}/button. Button 0 unmaps.
func (h *CalibrationHandler) HandleSetButton(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_button"
	sensor, err := sensorParam(r, op)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req buttonRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Button == nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, errMissingButton))
		return
	}
	if err := h.deps.SetButton(r.Context(), sensor, *req.Button); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sensorView(sensor))
}

// HandleSetReleaseMode handles PUT /release-mode. The ratio defaults to the
// current global ratio.
func (h *CalibrationHandler) HandleSetReleaseMode(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_release_mode"
	var req releaseModeRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	mode, err := release.Parse(req.Mode)
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	snap := h.deps.Snapshot(false)
	ratio := snap.GlobalRatio
	if req.Ratio != nil {
		ratio = *req.Ratio
	}
	if err := h.deps.SetReleaseMode(r.Context(), mode, ratio); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Snapshot(false))
}

func (h *CalibrationHandler) sensorView(sensor int) any {
	snap := h.deps.Snapshot(false)
	if sensor < len(snap.Sensors) {
		return snap.Sensors[sensor]
	}
	return snap
}
