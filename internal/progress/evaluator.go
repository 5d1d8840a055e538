// Package progress computes goal completion and activity statistics from
// in-memory activity lists.
package progress

import (
	"fmt"
	"math"
	"time"

	"example.com/smartroutine/internal/domain"
)

// Progress is the derived completion of a goal.
type Progress struct {
	// Percent lies in [0, 100].
	Percent float64
	// RawValue is minutes for daily_duration goals and a count for weekly_frequency goals.
	RawValue float64
}

// Complete reports whether the goal target has been reached.
func (p Progress) Complete() bool {
	return p.Percent >= 100
}

const weeklyWindow = 7 * 24 * time.Hour

// Evaluate computes the progress of goal over activities as of now. Only
// validated activities of the goal's category count. Calendar days are taken
// in now's location.
func Evaluate(goal domain.Goal, activities []domain.Activity, now time.Time) (Progress, error) {
	if goal.TargetValue <= 0 {
		return Progress{}, fmt.Errorf("%w: goal %s has target %d", domain.ErrDivision, goal.ID, goal.TargetValue)
	}

	var raw float64
	switch goal.Type {
	case domain.GoalTypeDailyDuration:
		for _, a := range activities {
			if counts(goal, a) && sameDay(a.CreatedAt.In(now.Location()), now) {
				raw += float64(a.DurationMinutes)
			}
		}
	case domain.GoalTypeWeeklyFrequency:
		cutoff := now.Add(-weeklyWindow)
		for _, a := range activities {
			if counts(goal, a) && !a.CreatedAt.Before(cutoff) {
				raw++
			}
		}
	default:
		return Progress{}, nil
	}

	percent := math.Min(raw/float64(goal.TargetValue)*100, 100)
	return Progress{Percent: percent, RawValue: raw}, nil
}

func counts(goal domain.Goal, a domain.Activity) bool {
	return a.Type == goal.ActivityCategory && a.Status == domain.ReviewStatusValidated
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
