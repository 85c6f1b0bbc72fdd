// Package scoring ranks candidate technicians for a task.
//
// The score is a fixed weighted sum of four normalised factors: skill
// coverage, location match, weekly availability and load balance. The load
// balance factor is intentionally unclamped, so a technician already past
// their weekly capacity gets a negative contribution and the total can drop
// below zero.
package scoring

import (
	"sort"

	"github.com/kilianp07/fieldplan/core/model"
)

const (
	SkillWeight        = 0.40
	LocationWeight     = 0.20
	AvailabilityWeight = 0.25
	LoadBalanceWeight  = 0.15
)

// Breakdown holds the individual factors before weighting.
type Breakdown struct {
	Skill        float64 `json:"skill"`
	Location     float64 `json:"location"`
	Availability float64 `json:"availability"`
	LoadBalance  float64 `json:"load_balance"`
}

// Score is the desirability of a technician for a task.
type Score struct {
	TechnicianID string    `json:"technician_id"`
	Value        float64   `json:"value"`
	Breakdown    Breakdown `json:"breakdown"`
}

// Engine computes scores. The zero value uses the package weights.
type Engine struct{}

// NewEngine returns a scoring engine.
func NewEngine() Engine { return Engine{} }

// Score computes the weighted score of tech for task given the hours the
// technician already has committed this week.
func (Engine) Score(tech model.Technician, task model.Task, hoursUsed float64) Score {
	b := Breakdown{
		Skill:        SkillCoverage(tech.Skills, task.RequiredSkills),
		Location:     LocationMatch(tech.Location, task.Location),
		Availability: Availability(tech.CapacityHours, hoursUsed),
		LoadBalance:  LoadBalance(tech.CapacityHours, hoursUsed),
	}
	v := b.Skill*SkillWeight +
		b.Location*LocationWeight +
		b.Availability*AvailabilityWeight +
		b.LoadBalance*LoadBalanceWeight
	return Score{TechnicianID: tech.ID, Value: v, Breakdown: b}
}

// SkillCoverage is the fraction of required skills held. It is 1 when
// nothing is required.
func SkillCoverage(have, required []string) float64 {
	matched, total := model.NewSkillSet(have).Matched(required)
	if total == 0 {
		return 1
	}
	return float64(matched) / float64(total)
}

// LocationMatch is 1 for equal locations, 0 for different ones and 0.5
// when either side is unknown.
func LocationMatch(techLoc, taskLoc string) float64 {
	a, b := model.NormalizeLocation(techLoc), model.NormalizeLocation(taskLoc)
	if a == "" || b == "" {
		return 0.5
	}
	if a == b {
		return 1
	}
	return 0
}

// Availability is the remaining share of the weekly capacity clamped to [0,1].
func Availability(capacityHours, hoursUsed float64) float64 {
	if capacityHours <= 0 {
		return 0
	}
	r := (capacityHours - hoursUsed) / capacityHours
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// LoadBalance is 1 - utilisation. Not clamped.
func LoadBalance(capacityHours, hoursUsed float64) float64 {
	if capacityHours <= 0 {
		return 0
	}
	return 1 - hoursUsed/capacityHours
}

// Rank sorts scores by descending value. Equal values are ordered by
// technician id so the winner never depends on listing order.
func Rank(scores []Score) []Score {
	out := append([]Score(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].TechnicianID < out[j].TechnicianID
	})
	return out
}

// Best returns the top ranked score. ok is false for an empty input.
func Best(scores []Score) (best Score, ok bool) {
	if len(scores) == 0 {
		return Score{}, false
	}
	return Rank(scores)[0], true
}
