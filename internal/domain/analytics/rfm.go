package analytics

import (
	"cmp"
	"slices"
	"time"

	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/order"
)

// RFMTopSegment narrows the purchasing members in three stages and returns
// the survivors ranked by monetary value. Only orders dated on or before asOf
// are considered.
//
//  1. Recency: rank by (last order date desc, member ID asc) and keep the
//     first ceil((n+1)/2).
//  2. Frequency: sort by (order count asc, recency rank desc) and keep the
//     upper half starting at index floor(n/2).
//  3. Monetary: sort by (monetary desc, member ID asc) and keep the first
//     ceil((n+1)/2).
//
// Every stage tolerates empty and single-member cohorts.
func RFMTopSegment(members []member.Member, orders []order.Order, asOf time.Time) []member.Member {
	byID := make(map[int64]member.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	type stats struct {
		member member.Member
		last   time.Time
		count  int
		rank   int
	}
	seen := make(map[int64]*stats)
	for _, o := range orders {
		if o.Date.After(asOf) {
			continue
		}
		m, ok := byID[o.MemberID]
		if !ok {
			continue
		}
		s, ok := seen[o.MemberID]
		if !ok {
			s = &stats{member: m}
			seen[o.MemberID] = s
		}
		s.count++
		if o.Date.After(s.last) {
			s.last = o.Date
		}
	}

	cohort := make([]*stats, 0, len(seen))
	for _, s := range seen {
		cohort = append(cohort, s)
	}

	// Recency.
	slices.SortFunc(cohort, func(a, b *stats) int {
		if c := b.last.Compare(a.last); c != 0 {
			return c
		}
		return cmp.Compare(a.member.ID, b.member.ID)
	})
	cohort = cohort[:upperHalf(len(cohort))]
	for i, s := range cohort {
		s.rank = i
	}

	// Frequency.
	slices.SortFunc(cohort, func(a, b *stats) int {
		if c := cmp.Compare(a.count, b.count); c != 0 {
			return c
		}
		return cmp.Compare(b.rank, a.rank)
	})
	cohort = cohort[len(cohort)/2:]

	// Monetary.
	slices.SortFunc(cohort, func(a, b *stats) int {
		if c := cmp.Compare(b.member.Monetary, a.member.Monetary); c != 0 {
			return c
		}
		return cmp.Compare(a.member.ID, b.member.ID)
	})
	cohort = cohort[:upperHalf(len(cohort))]

	out := make([]member.Member, len(cohort))
	for i, s := range cohort {
		out[i] = s.member
	}
	return out
}

// upperHalf returns ceil((n+1)/2) clamped to n.
func upperHalf(n int) int {
	return min(n, n/2+1)
}
