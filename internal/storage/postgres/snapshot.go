package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/retail-crm/internal/domain/analytics"
)

const (
	snapshotMembersSQL = `SELECT ` + memberColumns + ` FROM members ORDER BY id`

	snapshotOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE $1::timestamptz IS NULL OR ordered_at >= $1
		ORDER BY id`
)

var _ analytics.Source = (*Snapshots)(nil)

// Snapshots serves analytics datasets from a repeatable-read transaction so
// members and orders are read at the same point in time.
type Snapshots struct {
	pool *pgxpool.Pool
}

// NewSnapshots returns a Snapshots source that uses the given pool.
func NewSnapshots(pool *pgxpool.Pool) *Snapshots {
	return &Snapshots{pool: pool}
}

// Snapshot loads every member and the orders dated on or after since.
func (s *Snapshots) Snapshot(ctx context.Context, since time.Time) (*analytics.Dataset, error) {
	var (
		ds    analytics.Dataset
		bound any
	)
	if !since.IsZero() {
		bound = since
	}

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, snapshotMembersSQL)
		if err != nil {
			return fmt.Errorf("reading members: %w", err)
		}
		if ds.Members, err = pgx.CollectRows(rows, scanMember); err != nil {
			return fmt.Errorf("reading members: %w", err)
		}

		rows, err = tx.Query(ctx, snapshotOrdersSQL, bound)
		if err != nil {
			return fmt.Errorf("reading orders: %w", err)
		}
		if ds.Orders, err = pgx.CollectRows(rows, scanOrder); err != nil {
			return fmt.Errorf("reading orders: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ds, nil
}
