package config

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"vinotracker/models"
	"vinotracker/store"
)

// SeedAdmin creates the first admin account when the profiles table is
// empty. Skipped silently when any user exists or no credentials are
// configured.
func SeedAdmin(ctx context.Context, s *store.Store, cfg Config, log *slog.Logger) error {
	n, err := s.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Warn("no users exist and ADMIN_EMAIL/ADMIN_PASSWORD are unset; skipping admin seed")
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &models.UserProfile{
		Email:        cfg.AdminEmail,
		PasswordHash: string(hash),
		FullName:     "Administrator",
		Role:         models.RoleAdmin,
	}
	if err := s.CreateUser(ctx, admin); err != nil {
		return err
	}
	log.Info("seeded initial admin account", "email", cfg.AdminEmail)
	return nil
}
