package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/retail-crm/internal/domain/paging"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrMaterialNotFound is returned when a requested material does not exist.
	ErrMaterialNotFound = errors.New("material not found")
	// ErrDuplicate is returned when a name or a bill-of-materials line
	// already exists.
	ErrDuplicate = errors.New("already exists")
)

// Product is a catalog item with its inventory parameters.
type Product struct {
	ID            int64
	Name          string
	Price         decimal.Decimal
	OnHandBalance int
	// LeadingTime is the replenishment lead time in days.
	LeadingTime  int
	ReorderPoint decimal.Decimal
}

// NeedsReorder reports whether stock on hand has fallen to the reorder point.
func (p Product) NeedsReorder() bool {
	return decimal.NewFromInt(int64(p.OnHandBalance)).LessThanOrEqual(p.ReorderPoint)
}

// Material is a raw material referenced by bills of materials.
type Material struct {
	ID   int64
	Name string
}

// Update lists the product fields to change. Nil fields are left untouched.
type Update struct {
	Name          *string
	Price         *decimal.Decimal
	OnHandBalance *int
	LeadingTime   *int
	ReorderPoint  *decimal.Decimal
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Name == nil && u.Price == nil && u.OnHandBalance == nil &&
		u.LeadingTime == nil && u.ReorderPoint == nil
}

// Apply returns p with the update applied.
func (u Update) Apply(p Product) Product {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.OnHandBalance != nil {
		p.OnHandBalance = *u.OnHandBalance
	}
	if u.LeadingTime != nil {
		p.LeadingTime = *u.LeadingTime
	}
	if u.ReorderPoint != nil {
		p.ReorderPoint = *u.ReorderPoint
	}
	return p
}

// ValidationError describes a rejected product or material field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Repository defines persistence operations for the catalog, its bills of
// materials and the products attached to orders.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context, page paging.Page) ([]Product, error)
	Count(ctx context.Context) (int, error)
	Save(ctx context.Context, p *Product) error

	CreateMaterial(ctx context.Context, m *Material) error
	ListMaterials(ctx context.Context) ([]Material, error)
	// AddMaterial records a bill-of-materials line. It returns ErrNotFound or
	// ErrMaterialNotFound when either side is missing.
	AddMaterial(ctx context.Context, productID, materialID int64) error
	Materials(ctx context.Context, productID int64) ([]Material, error)

	// AttachToOrder links a product to an order. It returns ErrNotFound when
	// the product is missing and order.ErrNotFound when the order is missing.
	AttachToOrder(ctx context.Context, orderID, productID int64) error
	ListByOrder(ctx context.Context, orderID int64) ([]Product, error)
}
