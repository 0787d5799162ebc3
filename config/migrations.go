package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"vinotracker/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20250810_create_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.UserProfile{}, &models.Client{},
					&models.Visit{}, &models.Order{}, &models.Product{})
			},
		},
		{
			// At most one open visit per rep, enforced where it matters.
			ID: "20250810_single_open_visit_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_visits_one_open_per_rep
					ON visits (rep_id) WHERE end_time IS NULL`).Error
			},
		},
		{
			ID: "20250810_visit_history_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_visits_client_start
					ON visits (client_id, start_time DESC)`).Error
			},
		},
		{
			ID: "20250811_call_frequency_check",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`ALTER TABLE clients
					ADD CONSTRAINT chk_clients_call_frequency CHECK (call_frequency >= 1)`).Error
			},
		},
	})
	return m.Migrate()
}
