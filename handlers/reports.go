// handlers/reports.go
package handlers

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"vinotracker/models"
	"vinotracker/store"
	"vinotracker/utils"
)

type ReportHandler struct {
	store *store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewReportHandler(s *store.Store, log *slog.Logger) *ReportHandler {
	return &ReportHandler{store: s, log: log, now: time.Now}
}

// RepActivity aggregates one rep's field work over the reporting window.
type RepActivity struct {
	RepID               uuid.UUID `json:"rep_id"`
	RepName             string    `json:"rep_name"`
	TotalVisits         int       `json:"total_visits"`
	AvgDurationMinutes  float64   `json:"avg_duration_minutes"`
	DistanceTravelledKM float64   `json:"distance_travelled_km"`
}

type SummaryReport struct {
	TotalClients    int           `json:"total_clients"`
	TotalProducts   int           `json:"total_products"`
	NewProducts     int           `json:"new_products_30d"`
	VisitsToday     int           `json:"visits_today"`
	VisitsThisWeek  int           `json:"visits_this_week"`
	VisitsThisMonth int           `json:"visits_this_month"`
	OnConsumption   int           `json:"on_consumption_clients"`
	OffConsumption  int           `json:"off_consumption_clients"`
	RepActivity     []RepActivity `json:"rep_activity"`
}

// Summary returns the admin dashboard numbers, aggregated over the last 30
// days of visits.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now().UTC()
	since := now.AddDate(0, 0, -30)

	clients, err := h.store.ListClients(ctx, nil)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	products, err := h.store.ListProducts(ctx)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	visits, err := h.store.ListVisits(ctx, &since)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	users, err := h.store.ListUsers(ctx)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, buildSummary(clients, products, visits, users, now))
}

// buildSummary derives the dashboard figures from raw rows. Visits must be
// ordered oldest first; distance is summed over consecutive located visits of
// the same rep.
func buildSummary(clients []models.Client, products []models.Product,
	visits []models.Visit, users []models.UserProfile, now time.Time) SummaryReport {

	out := SummaryReport{
		TotalClients:  len(clients),
		TotalProducts: len(products),
		RepActivity:   []RepActivity{},
	}
	for _, c := range clients {
		if c.ConsumptionType == models.OffConsumption {
			out.OffConsumption++
		} else {
			out.OnConsumption++
		}
	}
	cutoff := now.AddDate(0, 0, -30)
	for _, p := range products {
		if !p.CreatedAt.Before(cutoff) {
			out.NewProducts++
		}
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := now.AddDate(0, 0, -7)
	monthStart := now.AddDate(0, 0, -30)

	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName
	}

	type tally struct {
		visits   int
		minutes  int
		distance float64
		lastLat  *float64
		lastLng  *float64
	}
	perRep := make(map[uuid.UUID]*tally)

	for _, v := range visits {
		if !v.StartTime.Before(dayStart) {
			out.VisitsToday++
		}
		if !v.StartTime.Before(weekStart) {
			out.VisitsThisWeek++
		}
		if !v.StartTime.Before(monthStart) {
			out.VisitsThisMonth++
		}
		t := perRep[v.RepID]
		if t == nil {
			t = &tally{}
			perRep[v.RepID] = t
		}
		t.visits++
		t.minutes += v.DurationMinutes(now)
		if v.Latitude != nil && v.Longitude != nil {
			if t.lastLat != nil {
				t.distance += utils.DistanceMeters(*t.lastLat, *t.lastLng, *v.Latitude, *v.Longitude) / 1000
			}
			t.lastLat, t.lastLng = v.Latitude, v.Longitude
		}
	}

	for id, t := range perRep {
		a := RepActivity{
			RepID:               id,
			RepName:             names[id],
			TotalVisits:         t.visits,
			DistanceTravelledKM: t.distance,
		}
		if t.visits > 0 {
			a.AvgDurationMinutes = float64(t.minutes) / float64(t.visits)
		}
		out.RepActivity = append(out.RepActivity, a)
	}
	sort.Slice(out.RepActivity, func(i, j int) bool {
		if out.RepActivity[i].TotalVisits != out.RepActivity[j].TotalVisits {
			return out.RepActivity[i].TotalVisits > out.RepActivity[j].TotalVisits
		}
		return out.RepActivity[i].RepName < out.RepActivity[j].RepName
	})
	return out
}
