package member

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/retail-crm/internal/domain/paging"
)

// ErrNotFound is returned when a requested member does not exist.
var ErrNotFound = errors.New("member not found")

// Member is a registered customer. Monetary is the lifetime sum of the
// member's order totals and is only written by the order service.
type Member struct {
	ID       int64
	Name     string
	Sex      string
	Age      int
	Monetary int64
}

// ValidationError describes a rejected registration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Repository defines persistence operations for members.
type Repository interface {
	Create(ctx context.Context, m *Member) error
	Get(ctx context.Context, id int64) (*Member, error)
	List(ctx context.Context, page paging.Page) ([]Member, error)
	Count(ctx context.Context) (int, error)
	// Delete removes the member together with all of its orders and returns
	// the member as it was before deletion.
	Delete(ctx context.Context, id int64) (*Member, error)
}
