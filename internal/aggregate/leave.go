package aggregate

import (
	"time"

	"github.com/noah-isme/attendance-portal-api/internal/models"
)

// CreditMode names the policy for folding approved leave into the present
// count. Whether a multi-day leave should credit one unit per request or one
// per day covered is a product decision, so it is configuration, not code.
type CreditMode string

const (
	CreditPerRequest    CreditMode = "perRequest"
	CreditPerDayCovered CreditMode = "perDayCovered"
)

// EffectivePresent folds approved leave credit into a raw present count.
// presentDates are the dates already marked present; a day covered by a
// leave span never earns credit twice. Unknown modes fall back to
// per-request crediting.
func EffectivePresent(present int, approved []models.LeaveSpan, mode CreditMode, presentDates []time.Time) int {
	if len(approved) == 0 {
		return present
	}
	if mode != CreditPerDayCovered {
		return present + len(approved)
	}

	marked := make(map[string]struct{}, len(presentDates))
	for _, d := range presentDates {
		marked[dayKey(d)] = struct{}{}
	}

	credited := map[string]struct{}{}
	for _, span := range approved {
		from, to := span.From, span.To
		if to.Before(from) {
			continue
		}
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			key := dayKey(d)
			if _, already := marked[key]; already {
				continue
			}
			credited[key] = struct{}{}
		}
	}
	return present + len(credited)
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
