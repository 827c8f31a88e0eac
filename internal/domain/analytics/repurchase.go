package analytics

import (
	"time"

	"github.com/xenking/retail-crm/internal/domain/order"
)

// RepurchaseResult is the outcome of a repurchase-rate calculation. When the
// cohort is empty the rate is undefined; Rate is then 0 and Empty reports true.
type RepurchaseResult struct {
	Rate   float64
	Cohort int
	Repeat int
}

// Empty reports whether no member ordered inside the cohort window.
func (r RepurchaseResult) Empty() bool {
	return r.Cohort == 0
}

// RepurchaseRate returns the share of members who ordered in the cohort window
// [asOf-730d, asOf-365d] and ordered again in the repeat window
// (asOf-365d, asOf].
func RepurchaseRate(orders []order.Order, asOf time.Time) RepurchaseResult {
	cohortFrom := asOf.Add(-2 * year)
	cohortTo := asOf.Add(-year)

	cohort := make(map[int64]bool)
	for _, o := range orders {
		if !o.Date.Before(cohortFrom) && !o.Date.After(cohortTo) {
			cohort[o.MemberID] = false
		}
	}
	if len(cohort) == 0 {
		return RepurchaseResult{}
	}

	repeat := 0
	for _, o := range orders {
		if !o.Date.After(cohortTo) || o.Date.After(asOf) {
			continue
		}
		if seen, ok := cohort[o.MemberID]; ok && !seen {
			cohort[o.MemberID] = true
			repeat++
		}
	}

	return RepurchaseResult{
		Rate:   float64(repeat) / float64(len(cohort)),
		Cohort: len(cohort),
		Repeat: repeat,
	}
}
