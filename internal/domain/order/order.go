package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/retail-crm/internal/domain/paging"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a single purchase made by a member.
type Order struct {
	ID          int64
	MemberID    int64
	TotalAmount int64
	Date        time.Time
}

// Drift describes a member whose stored monetary value disagreed with the sum
// of its orders. Actual is the value written by the repair.
type Drift struct {
	MemberID int64
	Stored   int64
	Actual   int64
}

// ValidationError describes a rejected order field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Repository defines persistence operations for orders.
type Repository interface {
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, page paging.Page) ([]Order, error)
	Count(ctx context.Context) (int, error)
	ListByMember(ctx context.Context, memberID int64) ([]Order, error)
	// Drifted returns every member whose stored monetary differs from the sum
	// of its order totals.
	Drifted(ctx context.Context) ([]Drift, error)
	// WithMemberLock runs fn inside one transaction that holds an exclusive
	// lock on the member. It returns member.ErrNotFound when the member does
	// not exist. The transaction commits only if fn returns nil.
	WithMemberLock(ctx context.Context, memberID int64, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of order mutations available inside a member-scoped
// transaction.
type Tx interface {
	Insert(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id int64) (*Order, error)
	ListByMember(ctx context.Context, memberID int64) ([]Order, error)
	SetMonetary(ctx context.Context, memberID, monetary int64) error
}
