package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/paging"
)

const meterName = "github.com/xenking/retail-crm/internal/domain/order"

// PlaceRequest holds the input for placing an order. A zero Date means now.
type PlaceRequest struct {
	MemberID    int64
	TotalAmount int64
	Date        time.Time
}

// Service places and removes orders while keeping every member's monetary
// value equal to the sum of its orders.
type Service struct {
	orders  Repository
	members member.Repository
	now     func() time.Time
	repairs metric.Int64Counter
}

// NewService creates an order Service with the required dependencies.
func NewService(orders Repository, members member.Repository, mp metric.MeterProvider) *Service {
	var repairs metric.Int64Counter = noop.Int64Counter{}
	if mp != nil {
		c, err := mp.Meter(meterName).Int64Counter("crm.monetary.repairs",
			metric.WithDescription("Members whose monetary value was repaired"),
		)
		if err == nil {
			repairs = c
		}
	}
	return &Service{
		orders:  orders,
		members: members,
		now:     time.Now,
		repairs: repairs,
	}
}

// Place validates the request, persists the order and recomputes the owning
// member's monetary value in the same transaction.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	if req.MemberID <= 0 {
		return nil, &ValidationError{Field: "member_id", Reason: "must be positive"}
	}
	if req.TotalAmount < 0 {
		return nil, &ValidationError{Field: "total_amount", Reason: "must not be negative"}
	}

	date := req.Date
	if date.IsZero() {
		date = s.now()
	}
	o := &Order{
		MemberID:    req.MemberID,
		TotalAmount: req.TotalAmount,
		Date:        date.UTC(),
	}

	err := s.orders.WithMemberLock(ctx, req.MemberID, func(ctx context.Context, tx Tx) error {
		if err := tx.Insert(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		_, err := recompute(ctx, tx, req.MemberID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	return o, nil
}

// Delete removes an order and recomputes the owning member's monetary value
// in the same transaction.
func (s *Service) Delete(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var deleted *Order
	err = s.orders.WithMemberLock(ctx, o.MemberID, func(ctx context.Context, tx Tx) error {
		d, err := tx.Delete(ctx, id)
		if err != nil {
			return err
		}
		deleted = d
		_, err = recompute(ctx, tx, o.MemberID)
		return err
	})
	if err != nil {
		// The member and its orders were removed after the lookup above.
		if errors.Is(err, member.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete order %d: %w", id, err)
	}
	return deleted, nil
}

// RecomputeMonetary overwrites the member's monetary value with the sum of
// its current orders and returns the new value.
func (s *Service) RecomputeMonetary(ctx context.Context, memberID int64) (int64, error) {
	var total int64
	err := s.orders.WithMemberLock(ctx, memberID, func(ctx context.Context, tx Tx) error {
		v, err := recompute(ctx, tx, memberID)
		total = v
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("recompute monetary for member %d: %w", memberID, err)
	}
	return total, nil
}

// VerifyMonetary finds every member whose stored monetary value diverges from
// its order sum, repairs it and returns the repairs made. Members deleted
// while the pass runs are skipped.
func (s *Service) VerifyMonetary(ctx context.Context) ([]Drift, error) {
	drifted, err := s.orders.Drifted(ctx)
	if err != nil {
		return nil, fmt.Errorf("find drifted members: %w", err)
	}

	repaired := make([]Drift, 0, len(drifted))
	for _, d := range drifted {
		actual, err := s.RecomputeMonetary(ctx, d.MemberID)
		if err != nil {
			if errors.Is(err, member.ErrNotFound) {
				continue
			}
			return repaired, err
		}
		d.Actual = actual
		repaired = append(repaired, d)
		s.repairs.Add(ctx, 1)
	}
	return repaired, nil
}

// Get returns a single order by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// List returns one page of orders ordered by ID.
func (s *Service) List(ctx context.Context, page paging.Page) ([]Order, error) {
	if !page.All() {
		total, err := s.orders.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count orders: %w", err)
		}
		if err := page.Check(total); err != nil {
			return nil, err
		}
	}
	return s.orders.List(ctx, page)
}

// ListByMember returns all orders of an existing member.
func (s *Service) ListByMember(ctx context.Context, memberID int64) ([]Order, error) {
	if _, err := s.members.Get(ctx, memberID); err != nil {
		return nil, err
	}
	return s.orders.ListByMember(ctx, memberID)
}

func recompute(ctx context.Context, tx Tx, memberID int64) (int64, error) {
	orders, err := tx.ListByMember(ctx, memberID)
	if err != nil {
		return 0, errors.Wrap(err, "load member orders")
	}
	var total int64
	for _, o := range orders {
		total += o.TotalAmount
	}
	if err := tx.SetMonetary(ctx, memberID, total); err != nil {
		return 0, errors.Wrap(err, "set monetary")
	}
	return total, nil
}
