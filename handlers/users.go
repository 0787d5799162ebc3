// handlers/users.go
package handlers

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"vinotracker/models"
	"vinotracker/store"
)

type UserHandler struct {
	store *store.Store
	log   *slog.Logger
}

func NewUserHandler(s *store.Store, log *slog.Logger) *UserHandler {
	return &UserHandler{store: s, log: log}
}

type inviteReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Invite creates an account for a new rep or admin. Admin only.
func (h *UserHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Password) < 6 {
		unprocessable(w, "password must be at least 6 characters")
		return
	}
	u := &models.UserProfile{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     models.Role(req.Role),
	}
	if u.Role == "" {
		u.Role = models.RoleRep
	}
	if err := u.Validate(); err != nil {
		unprocessable(w, err.Error())
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	u.PasswordHash = string(hash)
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		respondError(w, h.log, err)
		return
	}
	h.log.Info("user invited", "user_id", u.ID, "role", u.Role)
	respondJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}
