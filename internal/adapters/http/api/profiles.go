package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/okian/padcal/internal/domain/profile"
)

// maxProfileBytes bounds an uploaded profile document.
const maxProfileBytes = 1 << 20

// ProfileHandler serves profile export, import and the named profile store.
type ProfileHandler struct {
	deps Dependencies
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps Dependencies) *ProfileHandler {
	return &ProfileHandler{deps: deps}
}

type savedResponse struct {
	Status string `json:"status"`
	Name   string `json:"name"`
}

// requestFormat picks the profile document format from a media type,
// defaulting to JSON.
func requestFormat(mediaType string) profile.Format {
	if strings.Contains(strings.ToLower(mediaType), "yaml") {
		return profile.YAML
	}
	return profile.JSON
}

// HandleExport handles GET /profile. Accept: application/yaml selects YAML.
func (h *ProfileHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	prof, err := h.deps.ExportProfile(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeProfile(w, r, prof)
}

// writeProfile encodes prof in the format the request accepts.
func writeProfile(w http.ResponseWriter, r *http.Request, prof profile.Profile) {
	format := requestFormat(r.Header.Get("Accept"))
	data, err := profile.Encode(prof, format)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if format == profile.YAML {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleImport handles PUT /profile. A malformed document leaves the pad
// untouched.
func (h *ProfileHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.import_profile"
	data, err := io.ReadAll(io.LimitReader(r.Body, maxProfileBytes))
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	prof, err := profile.Decode(data, requestFormat(r.Header.Get("Content-Type")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.deps.ImportProfile(r.Context(), prof); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Snapshot(false))
}

// HandleList handles GET /profiles.
func (h *ProfileHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.ListProfiles(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleSave handles POST /profiles/{name}.
func (h *ProfileHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_profile"
	name := r.PathValue("name")
	if name == "" {
		writeServiceError(w, WrapKind(op, ErrBadRequest, errMissingName))
		return
	}
	if err := h.deps.SaveProfile(r.Context(), name); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, savedResponse{Status: "saved", Name: name})
}

// HandleGet handles GET /profiles/{name}. It returns the stored document
// and leaves the pad alone.
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	name := r.PathValue("name")
	if name == "" {
		writeServiceError(w, WrapKind(op, ErrBadRequest, errMissingName))
		return
	}
	prof, err := h.deps.StoredProfile(r.Context(), name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeProfile(w, r, prof)
}

// HandleLoad handles POST /profiles/{name}/load: the stored profile becomes
// live.
func (h *ProfileHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	const op = "api.load_profile"
	name := r.PathValue("name")
	if name == "" {
		writeServiceError(w, WrapKind(op, ErrBadRequest, errMissingName))
		return
	}
	if err := h.deps.LoadProfile(r.Context(), name); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Snapshot(false))
}
