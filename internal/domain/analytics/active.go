package analytics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/order"
)

// ActiveRate is the activity score of one member.
type ActiveRate struct {
	MemberID      int64
	Name          string
	PurchaseCount int
	// MonthsSinceLastPurchase counts 30-day months, rounded to 2 places.
	MonthsSinceLastPurchase float64
	// Rate is (months/12)^count rounded to 4 places. Recent, frequent buyers
	// score close to 0.
	Rate float64
}

var thirty = decimal.NewFromInt(30)

// ActiveRates scores every member, in input order, on the orders dated in
// [asOf-365d, asOf]. Members without such orders score 0 on every field.
func ActiveRates(members []member.Member, orders []order.Order, asOf time.Time) []ActiveRate {
	from := asOf.Add(-year)

	type activity struct {
		count int
		last  time.Time
	}
	byMember := make(map[int64]*activity)
	for _, o := range orders {
		if o.Date.Before(from) || o.Date.After(asOf) {
			continue
		}
		a, ok := byMember[o.MemberID]
		if !ok {
			a = &activity{}
			byMember[o.MemberID] = a
		}
		a.count++
		if o.Date.After(a.last) {
			a.last = o.Date
		}
	}

	out := make([]ActiveRate, 0, len(members))
	for _, m := range members {
		r := ActiveRate{MemberID: m.ID, Name: m.Name}
		if a, ok := byMember[m.ID]; ok {
			days := int64(asOf.Sub(a.last) / day)
			months := decimal.NewFromInt(days).DivRound(thirty, 2)
			score := math.Pow(months.InexactFloat64()/12, float64(a.count))

			r.PurchaseCount = a.count
			r.MonthsSinceLastPurchase = months.InexactFloat64()
			r.Rate = decimal.NewFromFloat(score).Round(4).InexactFloat64()
		}
		out = append(out, r)
	}
	return out
}
