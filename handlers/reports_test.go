package handlers

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"vinotracker/models"
)

func ptr[T any](v T) *T { return &v }

func TestBuildSummary(t *testing.T) {
	now := time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)

	repA := models.UserProfile{ID: uuid.New(), FullName: "Thandi M"}
	repB := models.UserProfile{ID: uuid.New(), FullName: "Pieter V"}

	clients := []models.Client{
		{ID: uuid.New(), ConsumptionType: models.OnConsumption},
		{ID: uuid.New(), ConsumptionType: models.OnConsumption},
		{ID: uuid.New(), ConsumptionType: models.OffConsumption},
	}
	products := []models.Product{
		{CreatedAt: now.AddDate(0, 0, -5)},  // new
		{CreatedAt: now.AddDate(0, 0, -60)}, // old
	}

	end1 := now.Add(-20 * 24 * time.Hour).Add(30 * time.Minute)
	end2 := now.Add(-2 * 24 * time.Hour).Add(60 * time.Minute)
	end3 := now.Add(-1 * time.Hour).Add(45 * time.Minute)
	visits := []models.Visit{
		// repA: two visits 10 km apart (Cape Town CBD to Milnerton, roughly).
		{RepID: repA.ID, StartTime: now.Add(-20 * 24 * time.Hour), EndTime: &end1,
			Latitude: ptr(-33.9249), Longitude: ptr(18.4241)},
		{RepID: repA.ID, StartTime: now.Add(-2 * 24 * time.Hour), EndTime: &end2,
			Latitude: ptr(-33.8587), Longitude: ptr(18.5012)},
		// repB: one visit today, no coordinates.
		{RepID: repB.ID, StartTime: now.Add(-1 * time.Hour), EndTime: &end3},
	}
	users := []models.UserProfile{repA, repB}

	got := buildSummary(clients, products, visits, users, now)

	if got.TotalClients != 3 || got.TotalProducts != 2 {
		t.Errorf("totals: clients=%d products=%d", got.TotalClients, got.TotalProducts)
	}
	if got.NewProducts != 1 {
		t.Errorf("new products = %d, want 1", got.NewProducts)
	}
	if got.OnConsumption != 2 || got.OffConsumption != 1 {
		t.Errorf("consumption split: on=%d off=%d", got.OnConsumption, got.OffConsumption)
	}
	if got.VisitsToday != 1 {
		t.Errorf("visits today = %d, want 1", got.VisitsToday)
	}
	if got.VisitsThisWeek != 2 {
		t.Errorf("visits this week = %d, want 2", got.VisitsThisWeek)
	}
	if got.VisitsThisMonth != 3 {
		t.Errorf("visits this month = %d, want 3", got.VisitsThisMonth)
	}

	if len(got.RepActivity) != 2 {
		t.Fatalf("rep activity rows = %d, want 2", len(got.RepActivity))
	}
	// Sorted by visit count descending, so repA first.
	a := got.RepActivity[0]
	if a.RepID != repA.ID || a.RepName != "Thandi M" {
		t.Fatalf("first row should be repA, got %+v", a)
	}
	if a.TotalVisits != 2 {
		t.Errorf("repA visits = %d, want 2", a.TotalVisits)
	}
	if a.AvgDurationMinutes != 45 {
		t.Errorf("repA avg duration = %v, want 45", a.AvgDurationMinutes)
	}
	if a.DistanceTravelledKM < 5 || a.DistanceTravelledKM > 15 {
		t.Errorf("repA distance = %v km, want roughly 10", a.DistanceTravelledKM)
	}

	b := got.RepActivity[1]
	if b.TotalVisits != 1 || b.DistanceTravelledKM != 0 {
		t.Errorf("repB: visits=%d distance=%v", b.TotalVisits, b.DistanceTravelledKM)
	}
}

func TestBuildSummaryEmpty(t *testing.T) {
	got := buildSummary(nil, nil, nil, nil, time.Now())
	if got.TotalClients != 0 || len(got.RepActivity) != 0 {
		t.Errorf("empty input should produce zero summary: %+v", got)
	}
	if got.RepActivity == nil {
		t.Error("rep activity should encode as [], not null")
	}
}

func TestSummarizeVisits(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	endOld := now.Add(-48 * time.Hour).Add(40 * time.Minute)

	// Newest first, as the store returns them.
	visits := []models.Visit{
		{StartTime: now.Add(-30 * time.Minute),
			Latitude: ptr(-33.9249), Longitude: ptr(18.4241)},
		{StartTime: now.Add(-48 * time.Hour), EndTime: &endOld,
			Latitude: ptr(-33.8587), Longitude: ptr(18.5012)},
		{StartTime: now.Add(-96 * time.Hour)},
	}

	got := summarizeVisits(visits, now)
	if len(got) != 3 {
		t.Fatalf("rows = %d, want 3", len(got))
	}
	if got[0].DurationMinutes != 30 {
		t.Errorf("open visit duration = %d, want 30 (elapsed)", got[0].DurationMinutes)
	}
	if got[1].DurationMinutes != 40 {
		t.Errorf("closed visit duration = %d, want 40", got[1].DurationMinutes)
	}
	if got[0].DistanceFromPrevKM == nil {
		t.Fatal("leg between two located visits should have a distance")
	}
	if *got[0].DistanceFromPrevKM < 5 || *got[0].DistanceFromPrevKM > 15 {
		t.Errorf("leg distance = %v km, want roughly 10", *got[0].DistanceFromPrevKM)
	}
	if got[1].DistanceFromPrevKM != nil {
		t.Error("leg to an unlocated previous visit should have no distance")
	}
	if got[2].DistanceFromPrevKM != nil {
		t.Error("oldest visit has no previous leg")
	}
}
