// models/user.go
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleRep   Role = "Rep"
)

// UserProfile is an application account. Admins manage users, inventory and
// reports; reps work their assigned client list.
type UserProfile struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	FullName     string    `gorm:"size:100" json:"full_name"`
	Role         Role      `gorm:"size:10;not null;default:'Rep'" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

func (UserProfile) TableName() string { return "profiles" }

func (u *UserProfile) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

func (u *UserProfile) IsAdmin() bool { return u.Role == RoleAdmin }

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	return Role(s) == RoleAdmin || Role(s) == RoleRep
}

// Validate checks the invitable fields. The password is validated separately
// by the auth handler before hashing.
func (u *UserProfile) Validate() error {
	if !strings.Contains(u.Email, "@") || strings.ContainsAny(u.Email, " \t") {
		return errors.New("invalid email address")
	}
	if !ValidRole(string(u.Role)) {
		return errors.New("role must be Admin or Rep")
	}
	return nil
}
