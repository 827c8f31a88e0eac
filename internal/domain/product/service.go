package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/xenking/retail-crm/internal/domain/paging"
)

// Service validates catalog changes before they reach the repository.
type Service struct {
	products Repository
}

// NewService creates a product Service.
func NewService(products Repository) *Service {
	return &Service{products: products}
}

// Create validates and persists a new product.
func (s *Service) Create(ctx context.Context, p Product) (*Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, &p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &p, nil
}

// Update applies a partial update to an existing product.
func (s *Service) Update(ctx context.Context, id int64, u Update) (*Product, error) {
	if u.Empty() {
		return nil, &ValidationError{Field: "body", Reason: "no fields to update"}
	}
	current, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next := u.Apply(*current)
	next.Name = strings.TrimSpace(next.Name)
	if err := validate(next); err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, &next); err != nil {
		return nil, fmt.Errorf("save product %d: %w", id, err)
	}
	return &next, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.products.Get(ctx, id)
}

// List returns one page of products ordered by ID.
func (s *Service) List(ctx context.Context, page paging.Page) ([]Product, error) {
	if !page.All() {
		total, err := s.products.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count products: %w", err)
		}
		if err := page.Check(total); err != nil {
			return nil, err
		}
	}
	return s.products.List(ctx, page)
}

// CreateMaterial validates and persists a new material.
func (s *Service) CreateMaterial(ctx context.Context, name string) (*Material, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "material_name", Reason: "must not be empty"}
	}
	m := &Material{Name: name}
	if err := s.products.CreateMaterial(ctx, m); err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	return m, nil
}

// ListMaterials returns every material ordered by ID.
func (s *Service) ListMaterials(ctx context.Context) ([]Material, error) {
	return s.products.ListMaterials(ctx)
}

// AddMaterial adds a material to the product's bill of materials and returns
// the updated bill.
func (s *Service) AddMaterial(ctx context.Context, productID, materialID int64) ([]Material, error) {
	if err := s.products.AddMaterial(ctx, productID, materialID); err != nil {
		return nil, err
	}
	return s.products.Materials(ctx, productID)
}

// BillOfMaterials returns the materials of an existing product.
func (s *Service) BillOfMaterials(ctx context.Context, productID int64) ([]Material, error) {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, err
	}
	return s.products.Materials(ctx, productID)
}

// AttachToOrder links a product to an order and returns the order's products.
func (s *Service) AttachToOrder(ctx context.Context, orderID, productID int64) ([]Product, error) {
	if err := s.products.AttachToOrder(ctx, orderID, productID); err != nil {
		return nil, err
	}
	return s.products.ListByOrder(ctx, orderID)
}

// ListByOrder returns the products attached to an order.
func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]Product, error) {
	return s.products.ListByOrder(ctx, orderID)
}

func validate(p Product) error {
	switch {
	case p.Name == "":
		return &ValidationError{Field: "product_name", Reason: "must not be empty"}
	case p.Price.IsNegative():
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	case p.OnHandBalance < 0:
		return &ValidationError{Field: "on_hand_balance", Reason: "must not be negative"}
	case p.LeadingTime < 0:
		return &ValidationError{Field: "leading_time", Reason: "must not be negative"}
	case p.ReorderPoint.IsNegative():
		return &ValidationError{Field: "reorder_point", Reason: "must not be negative"}
	}
	return nil
}
