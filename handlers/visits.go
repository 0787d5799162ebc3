// handlers/visits.go
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"vinotracker/metrics"
	"vinotracker/models"
	"vinotracker/store"
	"vinotracker/utils"
)

type VisitHandler struct {
	store   *store.Store
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewVisitHandler(s *store.Store, log *slog.Logger, m *metrics.Metrics) *VisitHandler {
	return &VisitHandler{store: s, log: log, metrics: m, now: time.Now}
}

type startVisitReq struct {
	ClientID  uuid.UUID `json:"client_id"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
}

// Start opens a visit for the caller. A rep can hold at most one open visit;
// the precheck catches the common case and the partial unique index catches
// the race, surfacing as 409.
func (h *VisitHandler) Start(w http.ResponseWriter, r *http.Request) {
	repID, admin, ok := requestUser(w, r)
	if !ok {
		return
	}
	var req startVisitReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClientID == uuid.Nil {
		unprocessable(w, "client_id is required")
		return
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		unprocessable(w, "latitude and longitude must be provided together")
		return
	}
	if req.Latitude != nil {
		if err := utils.ValidateCoordinate(*req.Latitude, *req.Longitude); err != nil {
			unprocessable(w, err.Error())
			return
		}
	}
	client, err := h.store.GetClient(r.Context(), req.ClientID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if !admin && client.AssignedRepID != repID {
		http.Error(w, "client is not assigned to you", http.StatusForbidden)
		return
	}
	if open, err := h.store.GetOpenVisit(r.Context(), repID); err != nil {
		respondError(w, h.log, err)
		return
	} else if open != nil {
		h.metrics.VisitStarts.WithLabelValues(metrics.Failed).Inc()
		respondJSON(w, http.StatusConflict, errorResponse{Error: "a visit is already in progress"})
		return
	}
	v := &models.Visit{
		ClientID:   req.ClientID,
		RepID:      repID,
		StartTime:  h.now().UTC(),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		DraftItems: datatypes.JSON([]byte("[]")),
	}
	if err := h.store.CreateVisit(r.Context(), v); err != nil {
		h.metrics.VisitStarts.WithLabelValues(metrics.Failed).Inc()
		respondError(w, h.log, err)
		return
	}
	h.metrics.VisitStarts.WithLabelValues(metrics.OK).Inc()
	h.log.Info("visit started", "visit_id", v.ID, "client_id", v.ClientID, "rep_id", repID)
	respondJSON(w, http.StatusCreated, v)
}

// Open returns the caller's current open visit, or null when there is none.
// Clients call this on startup to resume an interrupted session.
func (h *VisitHandler) Open(w http.ResponseWriter, r *http.Request) {
	repID, _, ok := requestUser(w, r)
	if !ok {
		return
	}
	v, err := h.store.GetOpenVisit(r.Context(), repID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

type notesReq struct {
	Notes string `json:"notes"`
}

func (h *VisitHandler) SaveNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	repID, ok := h.ownOpenVisit(w, r, id)
	if !ok {
		return
	}
	var req notesReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.store.UpdateVisitNotes(r.Context(), id, req.Notes); err != nil {
		h.metrics.NotesSaves.WithLabelValues(metrics.Failed).Inc()
		respondError(w, h.log, err)
		return
	}
	h.metrics.NotesSaves.WithLabelValues(metrics.OK).Inc()
	h.log.Debug("notes saved", "visit_id", id, "rep_id", repID)
	respondJSON(w, http.StatusOK, map[string]string{"message": "notes saved"})
}

type draftReq struct {
	Items   []models.OrderItem `json:"items"`
	Version int64              `json:"version"`
}

// SaveDraft persists the in-progress order snapshot. Stale versions are
// rejected with 409 so a slow save cannot clobber a newer draft.
func (h *VisitHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.ownOpenVisit(w, r, id); !ok {
		return
	}
	var req draftReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Version < 1 {
		unprocessable(w, "version must be at least 1")
		return
	}
	for i := range req.Items {
		req.Items[i].Recompute()
		if err := req.Items[i].Validate(); err != nil {
			unprocessable(w, err.Error())
			return
		}
	}
	if req.Items == nil {
		req.Items = []models.OrderItem{}
	}
	if err := h.store.UpdateVisitDraft(r.Context(), id, req.Items, req.Version); err != nil {
		h.metrics.DraftSaves.WithLabelValues(metrics.Failed).Inc()
		respondError(w, h.log, err)
		return
	}
	h.metrics.DraftSaves.WithLabelValues(metrics.OK).Inc()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "draft saved",
		"version": req.Version,
	})
}

type photosReq struct {
	Photos []string `json:"photos"`
}

// AddPhotos appends photo URLs to the active visit.
func (h *VisitHandler) AddPhotos(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if _, ok := h.ownOpenVisit(w, r, id); !ok {
		return
	}
	var req photosReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Photos) == 0 {
		unprocessable(w, "photos must not be empty")
		return
	}
	if err := h.store.AddVisitPhotos(r.Context(), id, req.Photos); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "photos added"})
}

// End closes the caller's visit. Pending notes ride along in the request so
// nothing typed in the final seconds is lost.
func (h *VisitHandler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	repID, ok := h.ownOpenVisit(w, r, id)
	if !ok {
		return
	}
	var req notesReq
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := h.store.UpdateVisitNotes(r.Context(), id, req.Notes); err != nil {
			h.metrics.NotesSaves.WithLabelValues(metrics.Failed).Inc()
			respondError(w, h.log, err)
			return
		}
		h.metrics.NotesSaves.WithLabelValues(metrics.OK).Inc()
	}
	if err := h.store.CloseVisit(r.Context(), id, h.now().UTC()); err != nil {
		h.metrics.VisitEnds.WithLabelValues(metrics.Failed).Inc()
		respondError(w, h.log, err)
		return
	}
	h.metrics.VisitEnds.WithLabelValues(metrics.OK).Inc()
	h.log.Info("visit ended", "visit_id", id, "rep_id", repID)
	v, err := h.store.GetVisit(r.Context(), id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// visitSummary is a history row enriched with derived figures the list view
// shows: how long the visit ran and how far it was from the previous stop.
type visitSummary struct {
	models.Visit
	DurationMinutes    int      `json:"duration_minutes"`
	DistanceFromPrevKM *float64 `json:"distance_from_prev_km,omitempty"`
}

// History lists a client's past visits, newest first. The exclude query
// parameter hides the caller's current visit from its own history panel.
func (h *VisitHandler) History(w http.ResponseWriter, r *http.Request) {
	clientID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	userID, admin, ok := requestUser(w, r)
	if !ok {
		return
	}
	client, err := h.store.GetClient(r.Context(), clientID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if !admin && client.AssignedRepID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var exclude *uuid.UUID
	if raw := r.URL.Query().Get("exclude"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, "invalid exclude")
			return
		}
		exclude = &id
	}
	visits, err := h.store.ListClientVisits(r.Context(), clientID, exclude)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, summarizeVisits(visits, h.now()))
}

// summarizeVisits derives duration and leg distance for a newest-first visit
// list. The "previous" stop of row i is row i+1 (the chronologically earlier
// visit).
func summarizeVisits(visits []models.Visit, now time.Time) []visitSummary {
	out := make([]visitSummary, 0, len(visits))
	for i, v := range visits {
		s := visitSummary{Visit: v, DurationMinutes: v.DurationMinutes(now)}
		if i+1 < len(visits) {
			prev := visits[i+1]
			if v.Latitude != nil && v.Longitude != nil && prev.Latitude != nil && prev.Longitude != nil {
				km := utils.DistanceMeters(*prev.Latitude, *prev.Longitude, *v.Latitude, *v.Longitude) / 1000
				s.DistanceFromPrevKM = &km
			}
		}
		out = append(out, s)
	}
	return out
}

// ownOpenVisit loads the visit and checks it belongs to the caller and is
// still open. Returns the caller's id for logging.
func (h *VisitHandler) ownOpenVisit(w http.ResponseWriter, r *http.Request, visitID uuid.UUID) (uuid.UUID, bool) {
	repID, admin, ok := requestUser(w, r)
	if !ok {
		return uuid.Nil, false
	}
	v, err := h.store.GetVisit(r.Context(), visitID)
	if err != nil {
		respondError(w, h.log, err)
		return uuid.Nil, false
	}
	if !admin && v.RepID != repID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return uuid.Nil, false
	}
	if !v.Open() {
		respondJSON(w, http.StatusConflict, errorResponse{Error: "visit is already ended"})
		return uuid.Nil, false
	}
	return repID, true
}
