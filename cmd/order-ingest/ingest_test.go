package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/order"
)

type fakePlacer struct {
	mu     sync.Mutex
	placed []order.PlaceRequest
}

func (f *fakePlacer) Place(_ context.Context, req order.PlaceRequest) (*order.Order, error) {
	if req.MemberID == 404 {
		return nil, member.ErrNotFound
	}
	if req.TotalAmount < 0 {
		return nil, &order.ValidationError{Field: "total_amount", Reason: "must not be negative"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	return &order.Order{MemberID: req.MemberID, TotalAmount: req.TotalAmount, Date: req.Date}, nil
}

func writeExport(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    record
		wantErr bool
	}{
		{
			name: "date only",
			line: `{"ref":"A-1","member_id":7,"total_amount":1500,"date":"2026-03-01"}`,
			want: record{Ref: "A-1", MemberID: 7, TotalAmount: 1500, Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
		{
			name: "rfc3339 and unknown keys",
			line: `{"channel":"web","ref":"A-2","member_id":1,"total_amount":0,"date":"2026-03-01T10:00:00Z"}`,
			want: record{Ref: "A-2", MemberID: 1, Date: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		},
		{name: "missing ref", line: `{"member_id":1,"total_amount":5,"date":"2026-03-01"}`, wantErr: true},
		{name: "bad date", line: `{"ref":"x","member_id":1,"total_amount":5,"date":"yesterday"}`, wantErr: true},
		{name: "not json", line: `ref=x`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRecord([]byte(tt.line))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Ref, got.Ref)
			assert.Equal(t, tt.want.MemberID, got.MemberID)
			assert.Equal(t, tt.want.TotalAmount, got.TotalAmount)
			assert.True(t, tt.want.Date.Equal(got.Date))
		})
	}
}

func TestMergeOwners(t *testing.T) {
	owners := mergeOwners([]map[string]uint{
		{"shared": 1 << 0, "false-positive": 1 << 0},
		{"shared": 1 << 1},
		{"late": 1 << 2},
		{"late": 1 << 3},
	})

	assert.Equal(t, map[string]int{"shared": 0, "late": 2}, owners)
}

func TestPipelineSkipsSharedReferences(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeExport(t, dir, "a.ndjson.gz",
			`{"ref":"o-1","member_id":1,"total_amount":100,"date":"2026-01-01"}`,
			`{"ref":"o-2","member_id":2,"total_amount":200,"date":"2026-01-02"}`,
			`garbage`,
		),
		writeExport(t, dir, "b.ndjson.gz",
			`{"ref":"o-2","member_id":2,"total_amount":200,"date":"2026-01-02"}`,
			``,
			`{"ref":"o-3","member_id":404,"total_amount":300,"date":"2026-01-03"}`,
			`{"ref":"o-4","member_id":3,"total_amount":-1,"date":"2026-01-04"}`,
			`{"ref":"o-5","member_id":3,"total_amount":500,"date":"2026-01-05"}`,
		),
	}
	ctx := context.Background()

	filters, err := buildFilters(ctx, files)
	require.NoError(t, err)
	owners, err := findOwners(ctx, files, filters)
	require.NoError(t, err)
	assert.Equal(t, 0, owners["o-2"])

	placer := new(fakePlacer)
	stats, err := placeOrders(ctx, placer, files, owners, 2, rate.NewLimiter(rate.Inf, 1))
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.placed.Load())
	assert.EqualValues(t, 1, stats.duplicates.Load())
	assert.EqualValues(t, 1, stats.unknownMembers.Load())
	assert.EqualValues(t, 1, stats.invalid.Load())

	var total int64
	for _, p := range placer.placed {
		total += p.TotalAmount
	}
	assert.EqualValues(t, 800, total)
}

func TestStreamFileMissing(t *testing.T) {
	err := streamFile(context.Background(), filepath.Join(t.TempDir(), "none.gz"), func([]byte) error { return nil })
	require.Error(t, err)
}

func TestPipelinePlacesRepeatedReferenceOnce(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeExport(t, dir, "a.ndjson.gz",
			`{"ref":"x","member_id":1,"total_amount":100,"date":"2026-01-01"}`,
			`{"ref":"y","member_id":2,"total_amount":50,"date":"2026-01-02"}`,
			`{"ref":"x","member_id":1,"total_amount":100,"date":"2026-01-01"}`,
		),
		writeExport(t, dir, "b.ndjson.gz",
			`{"ref":"x","member_id":1,"total_amount":100,"date":"2026-01-01"}`,
			`{"ref":"z","member_id":3,"total_amount":70,"date":"2026-01-03"}`,
			`{"ref":"z","member_id":3,"total_amount":70,"date":"2026-01-03"}`,
		),
	}
	ctx := context.Background()

	filters, err := buildFilters(ctx, files)
	require.NoError(t, err)
	owners, err := findOwners(ctx, files, filters)
	require.NoError(t, err)

	placer := new(fakePlacer)
	stats, err := placeOrders(ctx, placer, files, owners, 4, rate.NewLimiter(rate.Inf, 1))
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.placed.Load())
	assert.EqualValues(t, 3, stats.duplicates.Load())

	byMember := make(map[int64]int64)
	for _, p := range placer.placed {
		byMember[p.MemberID] += p.TotalAmount
	}
	assert.Equal(t, map[int64]int64{1: 100, 2: 50, 3: 70}, byMember)
}
