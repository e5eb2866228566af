// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/padcal/internal/adapters/repository"
	service "github.com/okian/padcal/internal/app"
	"github.com/okian/padcal/internal/domain/mapping"
	"github.com/okian/padcal/internal/domain/pad"
	"github.com/okian/padcal/internal/domain/profile"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/session"
	"github.com/okian/padcal/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the calibration service.
type Dependencies interface {
	StatsProvider

	Snapshot(withHistory bool) types.Snapshot

	SetThresholds(ctx context.Context, sensor int, activation, rel float64) error
	SetReleaseMode(ctx context.Context, mode release.Mode, ratio float64) error
	SetButton(ctx context.Context, sensor, button int) error

	BeginDrag(ctx context.Context, sensor int, edit session.Edit) (bool, error)
	MoveDrag(ctx context.Context, y float64, extent session.Extent) (bool, error)
	EndDrag(ctx context.Context) (bool, error)
	CancelDrag(ctx context.Context) bool

	ExportProfile(ctx context.Context) (profile.Profile, error)
	ImportProfile(ctx context.Context, prof profile.Profile) error
	SaveProfile(ctx context.Context, name string) error
	LoadProfile(ctx context.Context, name string) error
	StoredProfile(ctx context.Context, name string) (profile.Profile, error)
	ListProfiles(ctx context.Context) ([]repository.Entry, error)
}

// Server wires HTTP routes for the calibration API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	calibrationHandler *CalibrationHandler
	sessionHandler     *SessionHandler
	profileHandler     *ProfileHandler
	liveHandler        *LiveHandler
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	liveOrigins []string
}

// WithLiveOrigins lets browsers on the given origins open the live stream.
// Same-origin clients and clients that send no Origin are always accepted.
func WithLiveOrigins(origins ...string) ServerOption {
	return func(c *serverConfig) {
		c.liveOrigins = append(c.liveOrigins, origins...)
	}
}

// NewServer creates a new API server with all handlers. liveInterval is the
// period between snapshots on the live stream.
func NewServer(deps Dependencies, liveInterval time.Duration, opts ...ServerOption) *Server {
	var cfg serverConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		calibrationHandler: NewCalibrationHandler(deps),
		sessionHandler:     NewSessionHandler(deps),
		profileHandler:     NewProfileHandler(deps),
		liveHandler:        NewLiveHandler(deps, liveInterval, cfg.liveOrigins...),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /pad", MetricsMiddleware(s.calibrationHandler.HandleGetPad, "pad"))
	mux.HandleFunc("PUT /sensors/{sensor}/thresholds", MetricsMiddleware(s.calibrationHandler.HandleSetThresholds, "thresholds"))
	mux.HandleFunc("PUT /sensors/{sensor}/button", MetricsMiddleware(s.calibrationHandler.HandleSetButton, "button"))
	mux.HandleFunc("PUT /release-mode", MetricsMiddleware(s.calibrationHandler.HandleSetReleaseMode, "release_mode"))

	mux.HandleFunc("POST /session", MetricsMiddleware(s.sessionHandler.HandleBegin, "session"))
	mux.HandleFunc("POST /session/move", MetricsMiddleware(s.sessionHandler.HandleMove, "session_move"))
	mux.HandleFunc("POST /session/end", MetricsMiddleware(s.sessionHandler.HandleEnd, "session_end"))
	mux.HandleFunc("DELETE /session", MetricsMiddleware(s.sessionHandler.HandleCancel, "session"))

	mux.HandleFunc("GET /profile", MetricsMiddleware(s.profileHandler.HandleExport, "profile"))
	mux.HandleFunc("PUT /profile", MetricsMiddleware(s.profileHandler.HandleImport, "profile"))
	mux.HandleFunc("GET /profiles", MetricsMiddleware(s.profileHandler.HandleList, "profiles"))
	mux.HandleFunc("POST /profiles/{name}", MetricsMiddleware(s.profileHandler.HandleSave, "profiles"))
	mux.HandleFunc("GET /profiles/{name}", MetricsMiddleware(s.profileHandler.HandleGet, "profiles"))
	mux.HandleFunc("POST /profiles/{name}/load", MetricsMiddleware(s.profileHandler.HandleLoad, "profiles_load"))

	mux.HandleFunc("GET /live", s.liveHandler.HandleLive)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates a service error into its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoDevice):
		writeError(w, http.StatusServiceUnavailable, "device_unavailable", err)
	case errors.Is(err, service.ErrNoStore):
		writeError(w, http.StatusNotImplemented, "no_profile_store", err)
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, pad.ErrReleaseLocked):
		writeError(w, http.StatusConflict, "release_locked", err)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, profile.ErrMalformedProfile),
		errors.Is(err, pad.ErrUnknownSensor),
		errors.Is(err, mapping.ErrInvalidButton),
		errors.Is(err, mapping.ErrInvalidSensor),
		errors.Is(err, release.ErrUnknownMode),
		errors.Is(err, repository.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, op string, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// sensorParam parses the {sensor} path value.
func sensorParam(r *http.Request, op string) (int, error) {
	i, err := strconv.Atoi(r.PathValue("sensor"))
	if err != nil || i < 0 {
		return 0, WrapKind(op, ErrBadRequest, err)
	}
	return i, nil
}
