package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConsumptionType string

const (
	OnConsumption  ConsumptionType = "on-consumption"
	OffConsumption ConsumptionType = "off-consumption"
)

// Client is a venue a representative calls on. CallFrequency is the number of
// visits expected per 30-day period and must be at least 1; the priority
// engine divides by it.
type Client struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string          `gorm:"size:200;not null" json:"name"`
	Email           string          `gorm:"size:100;not null" json:"email"`
	Phone           *string         `gorm:"size:20" json:"phone,omitempty"`
	Address         *string         `gorm:"size:500" json:"address,omitempty"`
	ConsumptionType ConsumptionType `gorm:"size:20;not null;default:'on-consumption'" json:"consumption_type"`
	CallFrequency   int             `gorm:"not null;default:1" json:"call_frequency"`
	AssignedRepID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"assigned_rep_id"`

	// Derived per query from the latest completed visit; read-only and never
	// migrated as a column.
	LastVisitDate *time.Time `gorm:"->;-:migration" json:"last_visit_date,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

func (c *Client) Validate() error {
	if c.Name == "" {
		return errors.New("client name is required")
	}
	if c.Email == "" {
		return errors.New("client email is required")
	}
	if c.CallFrequency < 1 {
		return errors.New("call_frequency must be at least 1")
	}
	if c.ConsumptionType != OnConsumption && c.ConsumptionType != OffConsumption {
		return errors.New("consumption_type must be on-consumption or off-consumption")
	}
	if c.AssignedRepID == uuid.Nil {
		return errors.New("assigned_rep_id is required")
	}
	return nil
}

// NormalizeConsumptionType maps free-form input to a valid enum value,
// defaulting to on-consumption. Bulk uploads use this for lenient parsing.
func NormalizeConsumptionType(s string) ConsumptionType {
	if ConsumptionType(s) == OffConsumption {
		return OffConsumption
	}
	return OnConsumption
}
