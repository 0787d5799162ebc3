// handlers/auth.go
package handlers

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"vinotracker/middleware"
	"vinotracker/models"
	"vinotracker/store"
)

type AuthHandler struct {
	store *store.Store
	auth  *middleware.Auth
	log   *slog.Logger
}

func NewAuthHandler(s *store.Store, auth *middleware.Auth, log *slog.Logger) *AuthHandler {
	return &AuthHandler{store: s, auth: auth, log: log}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token string              `json:"token"`
	User  *models.UserProfile `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// Same answer for unknown email and bad password.
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token, err := h.auth.GenerateToken(u)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	h.log.Info("user logged in", "user_id", u.ID, "role", u.Role)
	respondJSON(w, http.StatusOK, loginResp{Token: token, User: u})
}

// CurrentUser resolves the bearer token to its fresh profile row, so role
// changes take effect without waiting for token expiry.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		http.Error(w, "missing Bearer token", http.StatusUnauthorized)
		return
	}
	claims, err := h.auth.ParseToken(auth[len(prefix):])
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	id, err := parseUUID(claims.UserID)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	u, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// Profile returns the claims already validated by the JWT middleware.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   claims.UserID,
		"email":     claims.Email,
		"full_name": claims.FullName,
		"role":      claims.Role,
	})
}
