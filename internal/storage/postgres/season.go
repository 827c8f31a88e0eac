package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/retail-crm/internal/domain/season"
)

const (
	insertSaleSQL = `INSERT INTO season_sales (year, season, sale) VALUES ($1, $2, $3)`

	getSaleSQL = `SELECT year, season, sale FROM season_sales WHERE year = $1 AND season = $2`

	listSalesSQL = `SELECT year, season, sale FROM season_sales ORDER BY year, season`

	listSalesByYearSQL = `SELECT year, season, sale FROM season_sales
		WHERE year = $1 ORDER BY season`

	listSalesBySeasonSQL = `SELECT year, season, sale FROM season_sales
		WHERE season = $1 ORDER BY year`

	updateSaleSQL = `UPDATE season_sales SET sale = $3 WHERE year = $1 AND season = $2`

	deleteSaleSQL = `DELETE FROM season_sales WHERE year = $1 AND season = $2
		RETURNING year, season, sale`
)

var _ season.Repository = (*SeasonRepository)(nil)

// SeasonRepository implements season.Repository backed by PostgreSQL.
type SeasonRepository struct {
	pool *pgxpool.Pool
}

// NewSeasonRepository returns a SeasonRepository that uses the given pool.
func NewSeasonRepository(pool *pgxpool.Pool) *SeasonRepository {
	return &SeasonRepository{pool: pool}
}

func (r *SeasonRepository) Create(ctx context.Context, s season.Sale) error {
	if _, err := r.pool.Exec(ctx, insertSaleSQL, s.Year, s.Season, s.Amount); err != nil {
		if _, ok := pgError(err, codeUniqueViolation); ok {
			return season.ErrAlreadyExists
		}
		return fmt.Errorf("inserting season sale: %w", err)
	}
	return nil
}

func (r *SeasonRepository) Get(ctx context.Context, year, s int) (*season.Sale, error) {
	return r.one(ctx, getSaleSQL, year, s)
}

func (r *SeasonRepository) List(ctx context.Context) ([]season.Sale, error) {
	return r.many(ctx, listSalesSQL)
}

func (r *SeasonRepository) ListByYear(ctx context.Context, year int) ([]season.Sale, error) {
	return r.many(ctx, listSalesByYearSQL, year)
}

func (r *SeasonRepository) ListBySeason(ctx context.Context, s int) ([]season.Sale, error) {
	return r.many(ctx, listSalesBySeasonSQL, s)
}

func (r *SeasonRepository) Update(ctx context.Context, s season.Sale) error {
	tag, err := r.pool.Exec(ctx, updateSaleSQL, s.Year, s.Season, s.Amount)
	if err != nil {
		return fmt.Errorf("updating season sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return season.ErrNotFound
	}
	return nil
}

func (r *SeasonRepository) Delete(ctx context.Context, year, s int) (*season.Sale, error) {
	return r.one(ctx, deleteSaleSQL, year, s)
}

func (r *SeasonRepository) one(ctx context.Context, sql string, year, s int) (*season.Sale, error) {
	rows, err := r.pool.Query(ctx, sql, year, s)
	if err != nil {
		return nil, fmt.Errorf("season sale %d/%d: %w", year, s, err)
	}
	sale, err := pgx.CollectExactlyOneRow(rows, scanSale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, season.ErrNotFound
		}
		return nil, fmt.Errorf("season sale %d/%d: %w", year, s, err)
	}
	return &sale, nil
}

func (r *SeasonRepository) many(ctx context.Context, sql string, args ...any) ([]season.Sale, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing season sales: %w", err)
	}
	return pgx.CollectRows(rows, scanSale)
}

func scanSale(row pgx.CollectableRow) (season.Sale, error) {
	var s season.Sale
	err := row.Scan(&s.Year, &s.Season, &s.Amount)
	return s, err
}
