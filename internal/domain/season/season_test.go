package season

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type key struct{ year, season int }

type mockRepo struct {
	sales map[key]Sale
}

func (m *mockRepo) Create(_ context.Context, s Sale) error {
	k := key{s.Year, s.Season}
	if _, ok := m.sales[k]; ok {
		return ErrAlreadyExists
	}
	m.sales[k] = s
	return nil
}

func (m *mockRepo) Get(_ context.Context, year, season int) (*Sale, error) {
	s, ok := m.sales[key{year, season}]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *mockRepo) List(context.Context) ([]Sale, error) {
	return m.filter(func(Sale) bool { return true }), nil
}

func (m *mockRepo) ListByYear(_ context.Context, year int) ([]Sale, error) {
	return m.filter(func(s Sale) bool { return s.Year == year }), nil
}

func (m *mockRepo) ListBySeason(_ context.Context, season int) ([]Sale, error) {
	return m.filter(func(s Sale) bool { return s.Season == season }), nil
}

func (m *mockRepo) Update(_ context.Context, s Sale) error {
	k := key{s.Year, s.Season}
	if _, ok := m.sales[k]; !ok {
		return ErrNotFound
	}
	m.sales[k] = s
	return nil
}

func (m *mockRepo) Delete(_ context.Context, year, season int) (*Sale, error) {
	k := key{year, season}
	s, ok := m.sales[k]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.sales, k)
	return &s, nil
}

func (m *mockRepo) filter(keep func(Sale) bool) []Sale {
	var out []Sale
	for y := 2000; y <= 2100; y++ {
		for s := 1; s <= 4; s++ {
			if v, ok := m.sales[key{y, s}]; ok && keep(v) {
				out = append(out, v)
			}
		}
	}
	return out
}

func newService() *Service {
	return NewService(&mockRepo{sales: make(map[key]Sale)})
}

func TestRecord(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Record(ctx, Sale{Year: 2023, Season: 1, Amount: 1500})
	require.NoError(t, err)
	_, err = svc.Record(ctx, Sale{Year: 2023, Season: 1, Amount: 10})
	require.ErrorIs(t, err, ErrAlreadyExists)

	got, err := svc.Get(ctx, 2023, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.Amount)
}

func TestRecord_Validation(t *testing.T) {
	tests := []struct {
		name  string
		sale  Sale
		field string
	}{
		{name: "season zero", sale: Sale{Year: 2023, Season: 0}, field: "season"},
		{name: "season five", sale: Sale{Year: 2023, Season: 5}, field: "season"},
		{name: "no year", sale: Sale{Season: 2}, field: "year"},
		{name: "negative sale", sale: Sale{Year: 2023, Season: 2, Amount: -1}, field: "sale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService().Record(context.Background(), tt.sale)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestUpdateAndDelete(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Update(ctx, Sale{Year: 2024, Season: 3, Amount: 1})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Record(ctx, Sale{Year: 2024, Season: 3, Amount: 1})
	require.NoError(t, err)
	_, err = svc.Update(ctx, Sale{Year: 2024, Season: 3, Amount: 900})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(900), deleted.Amount)

	_, err = svc.Get(ctx, 2024, 3)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListings(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	for _, s := range []Sale{
		{Year: 2022, Season: 1, Amount: 10},
		{Year: 2022, Season: 2, Amount: 20},
		{Year: 2023, Season: 1, Amount: 30},
	} {
		_, err := svc.Record(ctx, s)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byYear, err := svc.ListByYear(ctx, 2022)
	require.NoError(t, err)
	assert.Len(t, byYear, 2)

	bySeason, err := svc.ListBySeason(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []Sale{{2022, 1, 10}, {2023, 1, 30}}, bySeason)

	_, err = svc.ListBySeason(ctx, 9)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
