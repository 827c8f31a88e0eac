package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"pgregory.net/rapid"

	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/order"
)

var asOf = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return asOf.Add(-time.Duration(n) * day)
}

func newOrder(memberID int64, date time.Time) order.Order {
	return order.Order{MemberID: memberID, TotalAmount: 100, Date: date}
}

// --- Repurchase rate ---

func TestRepurchaseRate_Empty(t *testing.T) {
	res := RepurchaseRate(nil, asOf)
	assert.True(t, res.Empty())
	assert.Zero(t, res.Rate)
	assert.Zero(t, res.Repeat)
}

func TestRepurchaseRate_HalfCohortReturns(t *testing.T) {
	orders := []order.Order{
		newOrder(1, daysAgo(500)),
		newOrder(2, daysAgo(600)),
		newOrder(1, daysAgo(10)),
	}

	res := RepurchaseRate(orders, asOf)
	assert.False(t, res.Empty())
	assert.Equal(t, 2, res.Cohort)
	assert.Equal(t, 1, res.Repeat)
	assert.Equal(t, 0.5, res.Rate)
}

func TestRepurchaseRate_WindowBounds(t *testing.T) {
	tests := []struct {
		name   string
		orders []order.Order
		want   RepurchaseResult
	}{
		{
			name:   "cohort window start is inclusive",
			orders: []order.Order{newOrder(1, daysAgo(730)), newOrder(1, daysAgo(1))},
			want:   RepurchaseResult{Rate: 1, Cohort: 1, Repeat: 1},
		},
		{
			name:   "one year ago belongs to the cohort window only",
			orders: []order.Order{newOrder(1, daysAgo(365))},
			want:   RepurchaseResult{Rate: 0, Cohort: 1, Repeat: 0},
		},
		{
			name:   "older than two years is ignored",
			orders: []order.Order{newOrder(1, daysAgo(731)), newOrder(1, daysAgo(1))},
			want:   RepurchaseResult{},
		},
		{
			name:   "orders after as-of do not count as repeats",
			orders: []order.Order{newOrder(1, daysAgo(400)), newOrder(1, asOf.Add(time.Hour))},
			want:   RepurchaseResult{Rate: 0, Cohort: 1, Repeat: 0},
		},
		{
			name: "several repeat orders count once",
			orders: []order.Order{
				newOrder(1, daysAgo(400)),
				newOrder(1, daysAgo(30)),
				newOrder(1, daysAgo(20)),
			},
			want: RepurchaseResult{Rate: 1, Cohort: 1, Repeat: 1},
		},
		{
			name:   "repeat-only members are outside the cohort",
			orders: []order.Order{newOrder(1, daysAgo(400)), newOrder(2, daysAgo(3))},
			want:   RepurchaseResult{Rate: 0, Cohort: 1, Repeat: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepurchaseRate(tt.orders, asOf))
		})
	}
}

// --- Active rate ---

func TestActiveRates(t *testing.T) {
	members := []member.Member{
		{ID: 3, Name: "idle"},
		{ID: 1, Name: "monthly"},
		{ID: 2, Name: "twice"},
		{ID: 4, Name: "lapsed"},
		{ID: 5, Name: "today"},
	}
	orders := []order.Order{
		newOrder(1, daysAgo(30)),
		newOrder(2, daysAgo(60)),
		newOrder(2, daysAgo(90)),
		newOrder(4, daysAgo(400)),
		newOrder(5, asOf.Add(-time.Hour)),
	}

	rates := ActiveRates(members, orders, asOf)
	require.Len(t, rates, 5)

	assert.Equal(t, ActiveRate{MemberID: 3, Name: "idle"}, rates[0], "no orders scores zero")
	assert.Equal(t, ActiveRate{
		MemberID:                1,
		Name:                    "monthly",
		PurchaseCount:           1,
		MonthsSinceLastPurchase: 1.0,
		Rate:                    0.0833,
	}, rates[1])
	assert.Equal(t, ActiveRate{
		MemberID:                2,
		Name:                    "twice",
		PurchaseCount:           2,
		MonthsSinceLastPurchase: 2.0,
		Rate:                    0.0278,
	}, rates[2])
	assert.Equal(t, ActiveRate{MemberID: 4, Name: "lapsed"}, rates[3], "orders older than a year are ignored")
	assert.Equal(t, ActiveRate{MemberID: 5, Name: "today", PurchaseCount: 1}, rates[4], "same-day purchase scores zero")
}

func TestActiveRates_RoundsMonths(t *testing.T) {
	members := []member.Member{{ID: 1}}
	orders := []order.Order{newOrder(1, daysAgo(110).Add(-5*time.Hour))}

	rates := ActiveRates(members, orders, asOf)
	require.Len(t, rates, 1)
	assert.Equal(t, 3.67, rates[0].MonthsSinceLastPurchase)
	assert.Equal(t, 0.3058, rates[0].Rate)
}

func TestActiveRates_NoMembers(t *testing.T) {
	rates := ActiveRates(nil, []order.Order{newOrder(1, daysAgo(1))}, asOf)
	assert.Empty(t, rates)
}

// --- RFM ---

func rfmFixture() ([]member.Member, []order.Order) {
	members := []member.Member{
		{ID: 1, Name: "a", Monetary: 100},
		{ID: 2, Name: "b", Monetary: 500},
		{ID: 3, Name: "c", Monetary: 300},
		{ID: 4, Name: "d", Monetary: 50},
		{ID: 5, Name: "e", Monetary: 1000},
		{ID: 6, Name: "never"},
	}
	orders := []order.Order{
		newOrder(1, daysAgo(1)),
		newOrder(2, daysAgo(2)),
		newOrder(2, daysAgo(100)),
		newOrder(2, daysAgo(200)),
		newOrder(3, daysAgo(3)),
		newOrder(3, daysAgo(50)),
		newOrder(4, daysAgo(4)),
		newOrder(4, daysAgo(5)),
		newOrder(4, daysAgo(6)),
		newOrder(4, daysAgo(7)),
		newOrder(5, daysAgo(300)),
	}
	return members, orders
}

func memberIDs(ms []member.Member) []int64 {
	ids := make([]int64, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return ids
}

func TestRFMTopSegment(t *testing.T) {
	members, orders := rfmFixture()

	// Recency keeps 1,2,3 of five buyers; frequency keeps 3 and 2;
	// monetary ranks 2 before 3.
	got := RFMTopSegment(members, orders, asOf)
	assert.Equal(t, []int64{2, 3}, memberIDs(got))
}

func TestRFMTopSegment_Empty(t *testing.T) {
	got := RFMTopSegment([]member.Member{{ID: 1}}, nil, asOf)
	assert.Empty(t, got)
}

func TestRFMTopSegment_SingleMember(t *testing.T) {
	members := []member.Member{{ID: 7, Name: "solo", Monetary: 42}}
	orders := []order.Order{newOrder(7, daysAgo(10))}

	got := RFMTopSegment(members, orders, asOf)
	require.Len(t, got, 1)
	assert.Equal(t, members[0], got[0])
}

func TestRFMTopSegment_IgnoresFutureOrders(t *testing.T) {
	members := []member.Member{{ID: 1, Monetary: 10}, {ID: 2, Monetary: 20}}
	orders := []order.Order{
		newOrder(1, daysAgo(5)),
		newOrder(2, asOf.Add(day)),
	}

	got := RFMTopSegment(members, orders, asOf)
	assert.Equal(t, []int64{1}, memberIDs(got))
}

func TestRFMTopSegment_RecencyTieBreaksOnID(t *testing.T) {
	same := daysAgo(3)
	members := []member.Member{
		{ID: 9, Monetary: 1},
		{ID: 4, Monetary: 1},
		{ID: 6, Monetary: 1},
		{ID: 2, Monetary: 1},
	}
	orders := []order.Order{
		newOrder(9, same),
		newOrder(4, same),
		newOrder(6, same),
		newOrder(2, same),
	}

	// Recency keeps 2,4,6; frequency keeps the two most recent by rank (2,4);
	// monetary ties fall back to ID.
	got := RFMTopSegment(members, orders, asOf)
	assert.Equal(t, []int64{2, 4}, memberIDs(got))
}

func TestRFMTopSegment_Deterministic(t *testing.T) {
	members, orders := rfmFixture()
	want := memberIDs(RFMTopSegment(members, orders, asOf))

	rapid.Check(t, func(t *rapid.T) {
		shuffledMembers := rapid.Permutation(members).Draw(t, "members")
		shuffledOrders := rapid.Permutation(orders).Draw(t, "orders")

		got := memberIDs(RFMTopSegment(shuffledMembers, shuffledOrders, asOf))
		require.Equal(t, want, got)
	})
}

func TestUpperHalf(t *testing.T) {
	for n, want := range []int{0, 1, 2, 2, 3, 3, 4} {
		assert.Equal(t, want, upperHalf(n), "n=%d", n)
	}
}

// --- Service ---

type mockSource struct {
	ds    *Dataset
	err   error
	since time.Time
	calls int
}

func (m *mockSource) Snapshot(_ context.Context, since time.Time) (*Dataset, error) {
	m.calls++
	m.since = since
	return m.ds, m.err
}

func newTestService(src Source) *Service {
	svc := NewService(src, noop.NewTracerProvider())
	svc.now = func() time.Time { return asOf }
	return svc
}

func TestService_RepurchaseRate(t *testing.T) {
	src := &mockSource{ds: &Dataset{Orders: []order.Order{
		newOrder(1, daysAgo(500)),
		newOrder(2, daysAgo(600)),
		newOrder(1, daysAgo(10)),
	}}}
	svc := newTestService(src)

	res, err := svc.RepurchaseRate(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Rate)
	assert.Equal(t, daysAgo(730), src.since, "loads two years of orders")
}

func TestService_ActiveRates(t *testing.T) {
	src := &mockSource{ds: &Dataset{
		Members: []member.Member{{ID: 1, Name: "luke"}},
		Orders:  []order.Order{newOrder(1, daysAgo(30))},
	}}
	svc := newTestService(src)

	rates, err := svc.ActiveRates(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, 0.0833, rates[0].Rate)
	assert.Equal(t, daysAgo(365), src.since)
}

func TestService_RFMTopSegment(t *testing.T) {
	members, orders := rfmFixture()
	src := &mockSource{ds: &Dataset{Members: members, Orders: orders}}
	svc := newTestService(src)

	got, err := svc.RFMTopSegment(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, memberIDs(got))
	assert.True(t, src.since.IsZero(), "RFM reads the full history")
}

func TestService_SourceError(t *testing.T) {
	svc := newTestService(&mockSource{err: errors.New("connection reset")})
	ctx := context.Background()

	_, err := svc.RepurchaseRate(ctx, asOf)
	require.ErrorContains(t, err, "load snapshot")

	_, err = svc.ActiveRates(ctx, asOf)
	require.ErrorContains(t, err, "connection reset")

	_, err = svc.RFMTopSegment(ctx, asOf)
	require.Error(t, err)
}
