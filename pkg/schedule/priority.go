// Package schedule ranks a representative's clients by visit urgency. All
// functions are pure: they operate on already-fetched data and touch nothing.
package schedule

import (
	"math"
	"sort"
	"time"

	"vinotracker/models"
)

// Priority is a visit-urgency tier.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// periodDays is the window call_frequency is expressed against: a client with
// call_frequency N expects N visits every 30 days.
const periodDays = 30.0

// mediumThreshold is the fraction of the expected interval past which a
// client becomes medium priority.
const mediumThreshold = 0.75

func tierRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Result is the classification for one client.
type Result struct {
	Priority Priority
	// DaysSinceLastVisit is fractional days since the last completed visit,
	// +Inf for a client never visited.
	DaysSinceLastVisit float64
}

// ComputePriority classifies one client at the given instant.
//
// Expected interval between visits is 30/call_frequency days. A client that
// has never had a completed visit is always high. A call_frequency below 1
// violates the creation-time precondition; the engine degrades to high rather
// than dividing by a meaningless value.
func ComputePriority(c models.Client, now time.Time) Result {
	if c.LastVisitDate == nil {
		return Result{Priority: PriorityHigh, DaysSinceLastVisit: math.Inf(1)}
	}
	days := now.Sub(*c.LastVisitDate).Hours() / 24
	if c.CallFrequency < 1 {
		return Result{Priority: PriorityHigh, DaysSinceLastVisit: days}
	}
	interval := periodDays / float64(c.CallFrequency)
	switch {
	case days > interval:
		return Result{Priority: PriorityHigh, DaysSinceLastVisit: days}
	case days > mediumThreshold*interval:
		return Result{Priority: PriorityMedium, DaysSinceLastVisit: days}
	default:
		return Result{Priority: PriorityLow, DaysSinceLastVisit: days}
	}
}

// RankedClient is a client annotated with its computed urgency.
type RankedClient struct {
	models.Client
	Priority Priority `json:"priority"`
	// DaysSinceLastVisit is omitted for never-visited clients.
	DaysSinceLastVisit *float64 `json:"days_since_last_visit,omitempty"`
}

// RankClients classifies every client and orders them: high before medium
// before low, and within a tier the longest-waiting client first. Clients
// never visited rank ahead of every dated client in the high tier. The sort
// is stable, so ranking an already-ranked list again is a no-op.
func RankClients(clients []models.Client, now time.Time) []RankedClient {
	ranked := make([]RankedClient, 0, len(clients))
	for _, c := range clients {
		res := ComputePriority(c, now)
		rc := RankedClient{Client: c, Priority: res.Priority}
		if !math.IsInf(res.DaysSinceLastVisit, 1) {
			d := res.DaysSinceLastVisit
			rc.DaysSinceLastVisit = &d
		}
		ranked = append(ranked, rc)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := tierRank(ranked[i].Priority), tierRank(ranked[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return daysOrInf(ranked[i]) > daysOrInf(ranked[j])
	})
	return ranked
}

func daysOrInf(rc RankedClient) float64 {
	if rc.DaysSinceLastVisit == nil {
		return math.Inf(1)
	}
	return *rc.DaysSinceLastVisit
}
