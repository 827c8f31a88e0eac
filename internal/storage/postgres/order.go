package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/order"
	"github.com/xenking/retail-crm/internal/domain/paging"
)

const (
	orderColumns = `id, member_id, total_amount, ordered_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		ORDER BY id LIMIT $1 OFFSET $2`

	countOrdersSQL = `SELECT count(*) FROM orders`

	listMemberOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE member_id = $1 ORDER BY ordered_at, id`

	lockMemberSQL = `SELECT id FROM members WHERE id = $1 FOR UPDATE`

	insertOrderSQL = `INSERT INTO orders (member_id, total_amount, ordered_at)
		VALUES ($1, $2, $3) RETURNING id`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1 RETURNING ` + orderColumns

	setMonetarySQL = `UPDATE members SET monetary = $2 WHERE id = $1`

	driftedSQL = `SELECT m.id, m.monetary, COALESCE(SUM(o.total_amount), 0)::BIGINT
		FROM members m
		LEFT JOIN orders o ON o.member_id = m.id
		GROUP BY m.id
		HAVING m.monetary <> COALESCE(SUM(o.total_amount), 0)
		ORDER BY m.id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Get returns a single order by its identifier.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	return &o, nil
}

// List returns one page of orders ordered by ID.
func (r *OrderRepository) List(ctx context.Context, page paging.Page) ([]order.Order, error) {
	limit, offset := limitArgs(page)
	rows, err := r.pool.Query(ctx, listOrdersSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Count returns the number of orders.
func (r *OrderRepository) Count(ctx context.Context) (int, error) {
	n, err := count(ctx, r.pool, countOrdersSQL)
	if err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return n, nil
}

// ListByMember returns the member's orders oldest first.
func (r *OrderRepository) ListByMember(ctx context.Context, memberID int64) ([]order.Order, error) {
	return listByMember(ctx, r.pool, memberID)
}

// Drifted returns members whose stored monetary disagrees with their orders.
func (r *OrderRepository) Drifted(ctx context.Context) ([]order.Drift, error) {
	rows, err := r.pool.Query(ctx, driftedSQL)
	if err != nil {
		return nil, fmt.Errorf("finding monetary drift: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Drift, error) {
		var d order.Drift
		err := row.Scan(&d.MemberID, &d.Stored, &d.Actual)
		return d, err
	})
}

// WithMemberLock runs fn in a transaction holding a row lock on the member.
func (r *OrderRepository) WithMemberLock(ctx context.Context, memberID int64, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx, lockMemberSQL, memberID).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return member.ErrNotFound
			}
			return fmt.Errorf("locking member %d: %w", memberID, err)
		}
		return fn(ctx, orderTx{tx: tx})
	})
}

// orderTx implements order.Tx on an open transaction.
type orderTx struct {
	tx pgx.Tx
}

func (t orderTx) Insert(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, insertOrderSQL, o.MemberID, o.TotalAmount, o.Date).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func (t orderTx) Delete(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := t.tx.Query(ctx, deleteOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("deleting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("deleting order %d: %w", id, err)
	}
	return &o, nil
}

func (t orderTx) ListByMember(ctx context.Context, memberID int64) ([]order.Order, error) {
	return listByMember(ctx, t.tx, memberID)
}

func (t orderTx) SetMonetary(ctx context.Context, memberID, monetary int64) error {
	if _, err := t.tx.Exec(ctx, setMonetarySQL, memberID, monetary); err != nil {
		return fmt.Errorf("updating monetary of member %d: %w", memberID, err)
	}
	return nil
}

func listByMember(ctx context.Context, q querier, memberID int64) ([]order.Order, error) {
	rows, err := q.Query(ctx, listMemberOrdersSQL, memberID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of member %d: %w", memberID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.MemberID, &o.TotalAmount, &o.Date)
	o.Date = o.Date.UTC()
	return o, err
}
