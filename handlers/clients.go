// handlers/clients.go
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vinotracker/models"
	"vinotracker/pkg/schedule"
	"vinotracker/store"
)

type ClientHandler struct {
	store *store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewClientHandler(s *store.Store, log *slog.Logger) *ClientHandler {
	return &ClientHandler{store: s, log: log, now: time.Now}
}

// scope returns the rep filter for list queries: admins see every client,
// reps only their own book.
func scope(userID uuid.UUID, admin bool) *uuid.UUID {
	if admin {
		return nil
	}
	return &userID
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, admin, ok := requestUser(w, r)
	if !ok {
		return
	}
	clients, err := h.store.ListClients(r.Context(), scope(userID, admin))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, clients)
}

// Ranked lists the caller's clients ordered by visit priority: overdue
// venues first, recently covered ones last.
func (h *ClientHandler) Ranked(w http.ResponseWriter, r *http.Request) {
	userID, admin, ok := requestUser(w, r)
	if !ok {
		return
	}
	clients, err := h.store.ListClients(r.Context(), scope(userID, admin))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, schedule.RankClients(clients, h.now()))
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	userID, admin, ok := requestUser(w, r)
	if !ok {
		return
	}
	c, err := h.store.GetClient(r.Context(), id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if !admin && c.AssignedRepID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, admin, ok := requestUser(w, r)
	if !ok {
		return
	}
	var c models.Client
	if !decodeJSON(w, r, &c) {
		return
	}
	if c.AssignedRepID == uuid.Nil {
		c.AssignedRepID = userID
	}
	if !admin && c.AssignedRepID != userID {
		http.Error(w, "cannot assign clients to another rep", http.StatusForbidden)
		return
	}
	if c.ConsumptionType == "" {
		c.ConsumptionType = models.OnConsumption
	}
	if c.CallFrequency == 0 {
		c.CallFrequency = 1
	}
	if err := c.Validate(); err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := h.store.CreateClient(r.Context(), &c); err != nil {
		respondError(w, h.log, err)
		return
	}
	h.log.Info("client created", "client_id", c.ID, "rep_id", c.AssignedRepID)
	respondJSON(w, http.StatusCreated, c)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	userID, admin, ok := requestUser(w, r)
	if !ok {
		return
	}
	existing, err := h.store.GetClient(r.Context(), id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if !admin && existing.AssignedRepID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var c models.Client
	if !decodeJSON(w, r, &c) {
		return
	}
	c.ID = id
	if c.AssignedRepID == uuid.Nil {
		c.AssignedRepID = existing.AssignedRepID
	}
	if !admin && c.AssignedRepID != userID {
		http.Error(w, "cannot reassign clients to another rep", http.StatusForbidden)
		return
	}
	if err := c.Validate(); err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := h.store.UpdateClient(r.Context(), &c); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Delete soft-deletes a client. Admin only; reps keep their history but
// cannot remove venues from the book.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	_, admin, ok := requestUser(w, r)
	if !ok {
		return
	}
	if !admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err := h.store.DeleteClient(r.Context(), id); err != nil {
		respondError(w, h.log, err)
		return
	}
	h.log.Info("client deleted", "client_id", id)
	respondJSON(w, http.StatusOK, map[string]string{"message": "client deleted"})
}
