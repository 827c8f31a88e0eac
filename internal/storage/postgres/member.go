package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/paging"
)

const (
	memberColumns = `id, member_name, sex, age, monetary`

	insertMemberSQL = `INSERT INTO members (member_name, sex, age)
		VALUES ($1, $2, $3) RETURNING id, monetary`

	getMemberSQL = `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	listMembersSQL = `SELECT ` + memberColumns + ` FROM members
		ORDER BY id LIMIT $1 OFFSET $2`

	countMembersSQL = `SELECT count(*) FROM members`

	deleteMemberSQL = `DELETE FROM members WHERE id = $1 RETURNING ` + memberColumns
)

var _ member.Repository = (*MemberRepository)(nil)

// MemberRepository implements member.Repository backed by PostgreSQL.
type MemberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository returns a MemberRepository that uses the given pool.
func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

// Create inserts the member and fills in its ID.
func (r *MemberRepository) Create(ctx context.Context, m *member.Member) error {
	err := r.pool.QueryRow(ctx, insertMemberSQL, m.Name, m.Sex, m.Age).Scan(&m.ID, &m.Monetary)
	if err != nil {
		return fmt.Errorf("inserting member: %w", err)
	}
	return nil
}

// Get returns a single member by its identifier.
func (r *MemberRepository) Get(ctx context.Context, id int64) (*member.Member, error) {
	return r.one(ctx, getMemberSQL, id)
}

// List returns one page of members ordered by ID.
func (r *MemberRepository) List(ctx context.Context, page paging.Page) ([]member.Member, error) {
	limit, offset := limitArgs(page)
	rows, err := r.pool.Query(ctx, listMembersSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return pgx.CollectRows(rows, scanMember)
}

// Count returns the number of members.
func (r *MemberRepository) Count(ctx context.Context) (int, error) {
	n, err := count(ctx, r.pool, countMembersSQL)
	if err != nil {
		return 0, fmt.Errorf("counting members: %w", err)
	}
	return n, nil
}

// Delete removes the member. Orders go with it through ON DELETE CASCADE.
func (r *MemberRepository) Delete(ctx context.Context, id int64) (*member.Member, error) {
	return r.one(ctx, deleteMemberSQL, id)
}

func (r *MemberRepository) one(ctx context.Context, sql string, id int64) (*member.Member, error) {
	rows, err := r.pool.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("member %d: %w", id, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanMember)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, member.ErrNotFound
		}
		return nil, fmt.Errorf("member %d: %w", id, err)
	}
	return &m, nil
}

func scanMember(row pgx.CollectableRow) (member.Member, error) {
	var m member.Member
	err := row.Scan(&m.ID, &m.Name, &m.Sex, &m.Age, &m.Monetary)
	return m, err
}
