package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/retail-crm/internal/domain/order"
	"github.com/xenking/retail-crm/internal/domain/paging"
	"github.com/xenking/retail-crm/internal/domain/product"
)

const (
	productColumns = `id, product_name, price, on_hand_balance, leading_time, reorder_point`

	insertProductSQL = `INSERT INTO products (product_name, price, on_hand_balance, leading_time, reorder_point)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	getProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		ORDER BY id LIMIT $1 OFFSET $2`

	countProductsSQL = `SELECT count(*) FROM products`

	updateProductSQL = `UPDATE products
		SET product_name = $2, price = $3, on_hand_balance = $4, leading_time = $5, reorder_point = $6
		WHERE id = $1`

	insertMaterialSQL = `INSERT INTO materials (material_name) VALUES ($1) RETURNING id`

	listMaterialsSQL = `SELECT id, material_name FROM materials ORDER BY id`

	insertProductMaterialSQL = `INSERT INTO product_materials (product_id, material_id) VALUES ($1, $2)`

	listProductMaterialsSQL = `SELECT m.id, m.material_name
		FROM product_materials pm
		JOIN materials m ON m.id = pm.material_id
		WHERE pm.product_id = $1
		ORDER BY pm.id`

	insertOrderProductSQL = `INSERT INTO order_products (order_id, product_id) VALUES ($1, $2)`

	listOrderProductsSQL = `SELECT p.id, p.product_name, p.price, p.on_hand_balance, p.leading_time, p.reorder_point
		FROM order_products op
		JOIN products p ON p.id = op.product_id
		WHERE op.order_id = $1
		ORDER BY op.id`
)

// Foreign key constraint names as generated by PostgreSQL for the schema.
const (
	fkProductMaterialProduct  = "product_materials_product_id_fkey"
	fkProductMaterialMaterial = "product_materials_material_id_fkey"
	fkOrderProductOrder       = "order_products_order_id_fkey"
	fkOrderProductProduct     = "order_products_product_id_fkey"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts the product and fills in its ID.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, insertProductSQL,
		p.Name, p.Price, p.OnHandBalance, p.LeadingTime, p.ReorderPoint,
	).Scan(&p.ID)
	if err != nil {
		if _, ok := pgError(err, codeUniqueViolation); ok {
			return product.ErrDuplicate
		}
		return fmt.Errorf("inserting product: %w", err)
	}
	return nil
}

// Get returns a single product by its identifier.
func (r *ProductRepository) Get(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// List returns one page of products ordered by ID.
func (r *ProductRepository) List(ctx context.Context, page paging.Page) ([]product.Product, error) {
	limit, offset := limitArgs(page)
	rows, err := r.pool.Query(ctx, listProductsSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Count returns the number of products.
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	n, err := count(ctx, r.pool, countProductsSQL)
	if err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

// Save overwrites every column of an existing product.
func (r *ProductRepository) Save(ctx context.Context, p *product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Price, p.OnHandBalance, p.LeadingTime, p.ReorderPoint,
	)
	if err != nil {
		if _, ok := pgError(err, codeUniqueViolation); ok {
			return product.ErrDuplicate
		}
		return fmt.Errorf("updating product %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// CreateMaterial inserts the material and fills in its ID.
func (r *ProductRepository) CreateMaterial(ctx context.Context, m *product.Material) error {
	if err := r.pool.QueryRow(ctx, insertMaterialSQL, m.Name).Scan(&m.ID); err != nil {
		if _, ok := pgError(err, codeUniqueViolation); ok {
			return product.ErrDuplicate
		}
		return fmt.Errorf("inserting material: %w", err)
	}
	return nil
}

// ListMaterials returns every material ordered by ID.
func (r *ProductRepository) ListMaterials(ctx context.Context) ([]product.Material, error) {
	rows, err := r.pool.Query(ctx, listMaterialsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing materials: %w", err)
	}
	return pgx.CollectRows(rows, scanMaterial)
}

// AddMaterial records that the product is built from the material.
func (r *ProductRepository) AddMaterial(ctx context.Context, productID, materialID int64) error {
	_, err := r.pool.Exec(ctx, insertProductMaterialSQL, productID, materialID)
	if err == nil {
		return nil
	}
	if _, ok := pgError(err, codeUniqueViolation); ok {
		return product.ErrDuplicate
	}
	if pgErr, ok := pgError(err, codeForeignKeyViolation); ok {
		switch pgErr.ConstraintName {
		case fkProductMaterialProduct:
			return product.ErrNotFound
		case fkProductMaterialMaterial:
			return product.ErrMaterialNotFound
		}
	}
	return fmt.Errorf("adding material %d to product %d: %w", materialID, productID, err)
}

// Materials returns the bill of materials of a product.
func (r *ProductRepository) Materials(ctx context.Context, productID int64) ([]product.Material, error) {
	rows, err := r.pool.Query(ctx, listProductMaterialsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing materials of product %d: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanMaterial)
}

// AttachToOrder links a product to an order.
func (r *ProductRepository) AttachToOrder(ctx context.Context, orderID, productID int64) error {
	_, err := r.pool.Exec(ctx, insertOrderProductSQL, orderID, productID)
	if err == nil {
		return nil
	}
	if pgErr, ok := pgError(err, codeForeignKeyViolation); ok {
		switch pgErr.ConstraintName {
		case fkOrderProductOrder:
			return order.ErrNotFound
		case fkOrderProductProduct:
			return product.ErrNotFound
		}
	}
	return fmt.Errorf("attaching product %d to order %d: %w", productID, orderID, err)
}

// ListByOrder returns the products attached to an order.
func (r *ProductRepository) ListByOrder(ctx context.Context, orderID int64) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listOrderProductsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing products of order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.OnHandBalance, &p.LeadingTime, &p.ReorderPoint)
	return p, err
}

func scanMaterial(row pgx.CollectableRow) (product.Material, error) {
	var m product.Material
	err := row.Scan(&m.ID, &m.Name)
	return m, err
}
