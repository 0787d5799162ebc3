package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Visit is one client interaction. A visit with a null EndTime is the rep's
// active visit; a partial unique index on (rep_id) WHERE end_time IS NULL
// keeps it to at most one per rep.
//
// DraftItems holds the serialized in-progress order so a restarted session can
// restore it. DraftVersion only ever grows; the store refuses to apply a
// snapshot carrying a version at or below the persisted one, so a slow write
// cannot overwrite a newer draft.
type Visit struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID     uuid.UUID      `gorm:"type:uuid;index;not null" json:"client_id"`
	RepID        uuid.UUID      `gorm:"type:uuid;index;not null" json:"rep_id"`
	StartTime    time.Time      `gorm:"not null" json:"start_time"`
	EndTime      *time.Time     `json:"end_time,omitempty"`
	Latitude     *float64       `json:"latitude,omitempty"`
	Longitude    *float64       `json:"longitude,omitempty"`
	Notes        string         `gorm:"type:text" json:"notes"`
	DraftItems   datatypes.JSON `gorm:"type:jsonb" json:"draft_items,omitempty"`
	DraftVersion int64          `gorm:"not null;default:0" json:"draft_version"`
	Photos       pq.StringArray `gorm:"type:text[]" json:"photos,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"-"`
}

func (v *Visit) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return
}

func (v *Visit) Open() bool { return v.EndTime == nil }

// DraftOrderItems decodes the persisted draft snapshot. An absent or empty
// column decodes to an empty slice.
func (v *Visit) DraftOrderItems() ([]OrderItem, error) {
	if len(v.DraftItems) == 0 {
		return nil, nil
	}
	var items []OrderItem
	if err := json.Unmarshal(v.DraftItems, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// DurationMinutes is the whole-minute length of a completed visit, or the
// elapsed time so far for an open one.
func (v *Visit) DurationMinutes(now time.Time) int {
	end := now
	if v.EndTime != nil {
		end = *v.EndTime
	}
	return int(end.Sub(v.StartTime).Minutes())
}
