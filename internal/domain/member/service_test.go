package member

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/retail-crm/internal/domain/paging"
)

// --- Mocks ---

type mockRepo struct {
	created []Member
	count   int
	listed  paging.Page
	members map[int64]Member
	err     error
}

func (m *mockRepo) Create(_ context.Context, mem *Member) error {
	if m.err != nil {
		return m.err
	}
	mem.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *mem)
	return nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (*Member, error) {
	mem, ok := m.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &mem, nil
}

func (m *mockRepo) List(_ context.Context, page paging.Page) ([]Member, error) {
	m.listed = page
	return []Member{{ID: 1, Name: "Kim"}}, nil
}

func (m *mockRepo) Count(context.Context) (int, error) {
	return m.count, m.err
}

func (m *mockRepo) Delete(_ context.Context, id int64) (*Member, error) {
	mem, ok := m.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.members, id)
	return &mem, nil
}

// --- Tests ---

func TestRegister(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	m, err := svc.Register(context.Background(), RegisterRequest{Name: "  Kim ", Sex: "F", Age: 31})
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.ID)
	assert.Equal(t, "Kim", m.Name)
	assert.Zero(t, m.Monetary)
	require.Len(t, repo.created, 1)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   RegisterRequest
		field string
	}{
		{name: "blank name", req: RegisterRequest{Name: " ", Sex: "M"}, field: "member_name"},
		{name: "blank sex", req: RegisterRequest{Name: "Lee"}, field: "sex"},
		{name: "negative age", req: RegisterRequest{Name: "Lee", Sex: "M", Age: -1}, field: "age"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			_, err := NewService(repo).Register(context.Background(), tt.req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Empty(t, repo.created)
		})
	}
}

func TestRegister_RepositoryError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(&mockRepo{err: boom}).Register(context.Background(),
		RegisterRequest{Name: "Lee", Sex: "M", Age: 40})
	require.ErrorIs(t, err, boom)
}

func TestList(t *testing.T) {
	tests := []struct {
		name  string
		count int
		page  paging.Page
		err   error
	}{
		{name: "first page of empty table", count: 0, page: paging.Page{Number: 1}},
		{name: "last page", count: 11, page: paging.Page{Number: 2}},
		{name: "past the end", count: 10, page: paging.Page{Number: 2}, err: paging.ErrOutOfRange},
		{name: "all rows", count: 100, page: paging.Page{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{count: tt.count}
			got, err := NewService(repo).List(context.Background(), tt.page)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, 1)
			assert.Equal(t, tt.page, repo.listed)
		})
	}
}

func TestDelete(t *testing.T) {
	repo := &mockRepo{members: map[int64]Member{7: {ID: 7, Name: "Park"}}}
	svc := NewService(repo)

	m, err := svc.Delete(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Park", m.Name)

	_, err = svc.Delete(context.Background(), 7)
	require.ErrorIs(t, err, ErrNotFound)
}
