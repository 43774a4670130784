package handlers

import (
	"net/http"
	"time"

	"github.com/turtacn/PlotAtlas/internal/application/atlas"
	"github.com/turtacn/PlotAtlas/internal/application/mapview"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
	"github.com/turtacn/PlotAtlas/pkg/types/common"
)

// SessionResponse describes a headless map session.
type SessionResponse struct {
	ID        string        `json:"id"`
	State     mapview.State `json:"state"`
	CreatedAt time.Time     `json:"createdAt"`
	LastSeen  time.Time     `json:"lastSeen"`
}

// SelectCityRequest is the body of POST .../select.
type SelectCityRequest = common.SelectCityRequest

// OpenPopupRequest picks a feature of the session's visible plots.
type OpenPopupRequest = common.OpenPopupRequest

// SessionHandler drives server-side map controllers.
type SessionHandler struct {
	sessions *mapview.SessionManager
	svc      atlas.Service
	logger   logging.Logger
}

func NewSessionHandler(sessions *mapview.SessionManager, svc atlas.Service, logger logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SessionHandler{sessions: sessions, svc: svc, logger: logger.Named("sessions")}
}

func sessionResponse(s *mapview.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		State:     s.Controller.Snapshot(),
		CreatedAt: s.CreatedAt,
		LastSeen:  s.LastSeen(),
	}
}

// Create handles POST /map/sessions.  Without an access token the session
// is created in placeholder mode.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.CityData(r.Context())
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	s, err := h.sessions.Create(r.Context(), data)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+s.ID)
	writeJSON(w, http.StatusCreated, sessionResponse(s))
}

// List handles GET /map/sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, common.SessionList{Sessions: h.sessions.IDs()})
}

// Get handles GET /map/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// Clusters handles GET /map/sessions/{id}/clusters.
func (h *SessionHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeGeoJSON(w, s.Controller.Clusters())
}

// Plots handles GET /map/sessions/{id}/plots: the selected city's plots.
func (h *SessionHandler) Plots(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeGeoJSON(w, s.Controller.VisiblePlots())
}

// Select handles POST /map/sessions/{id}/select.
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SelectCityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	h.apply(w, r, s, s.Controller.SelectCity(req.City))
}

// Back handles POST /map/sessions/{id}/back.
func (h *SessionHandler) Back(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.apply(w, r, s, s.Controller.BackToCities())
}

// OpenPopup handles POST /map/sessions/{id}/popup.
func (h *SessionHandler) OpenPopup(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req OpenPopupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if req.FeatureIndex == nil {
		writeAppError(w, r, h.logger, errors.InvalidParam("featureIndex is required"))
		return
	}
	features := s.Controller.VisiblePlots().Features
	i := *req.FeatureIndex
	if i < 0 || i >= len(features) {
		writeAppError(w, r, h.logger, errors.Newf(errors.ErrCodeFeatureInvalid, "featureIndex %d out of range [0,%d)", i, len(features)))
		return
	}
	h.apply(w, r, s, s.Controller.OpenPopup(features[i]))
}

// ClosePopup handles DELETE /map/sessions/{id}/popup.
func (h *SessionHandler) ClosePopup(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Controller.ClosePopup()
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// Resize handles POST /map/sessions/{id}/resize.  The resize is applied
// after the debounce delay, so the response is 202.
func (h *SessionHandler) Resize(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Controller.ObserveResize()
	writeJSON(w, http.StatusAccepted, sessionResponse(s))
}

// Delete handles DELETE /map/sessions/{id}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if err := h.sessions.Delete(id); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*mapview.Session, bool) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) apply(w http.ResponseWriter, r *http.Request, s *mapview.Session, err error) {
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

//Personal.AI order the ending
