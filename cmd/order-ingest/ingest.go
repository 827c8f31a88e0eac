package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/order"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	maxFiles      = bits.UintSize
	maxLineSize   = 64 << 10
)

// record is one line of an order export.
type record struct {
	Ref         string
	MemberID    int64
	TotalAmount int64
	Date        time.Time
}

// placer is implemented by *order.Service.
type placer interface {
	Place(ctx context.Context, req order.PlaceRequest) (*order.Order, error)
}

// parseRecord decodes {"ref","member_id","total_amount","date"}.
func parseRecord(line []byte) (record, error) {
	var r record
	err := jx.DecodeBytes(line).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "ref":
			r.Ref, err = d.Str()
		case "member_id":
			r.MemberID, err = d.Int64()
		case "total_amount":
			r.TotalAmount, err = d.Int64()
		case "date":
			var s string
			if s, err = d.Str(); err != nil {
				return err
			}
			r.Date, err = parseDate(s)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return record{}, err
	}
	if r.Ref == "" {
		return record{}, errors.New("missing ref")
	}
	return r, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// streamFile calls fn for every non-empty line of a gzip-compressed file.
func streamFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// streamRecords is streamFile with each line decoded. Undecodable lines are
// logged and skipped.
func streamRecords(ctx context.Context, path string, fn func(r record) error) error {
	line := 0
	return streamFile(ctx, path, func(b []byte) error {
		line++
		r, err := parseRecord(b)
		if err != nil {
			slog.Warn("skipping malformed line",
				slog.String("file", path),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return fn(r)
	})
}

// buildFilters creates one bloom filter of order references per file.
func buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count int
			err := streamRecords(ctx, path, func(r record) error {
				filter.AddString(r.Ref)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Int("refs", count))
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}
			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Int("refs", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findOwners returns, for every reference present in two or more files, the
// index of the first file containing it. Bloom hits are confirmed by
// collecting the exact set of files each candidate was seen in.
func findOwners(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]int, error) {
	found := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			bit := uint(1) << uint(i)
			err := streamRecords(ctx, path, func(r record) error {
				for j, f := range filters {
					if j != i && f.TestString(r.Ref) {
						candidates[r.Ref] |= bit
						break
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan file %d for shared refs", i+1)
			}
			slog.Info("pass 2 complete", slog.Int("file", i+1), slog.Int("candidates", len(candidates)))
			found[i] = candidates
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeOwners(found), nil
}

// mergeOwners keeps references whose file masks have at least two bits set
// and maps each to its lowest file index.
func mergeOwners(found []map[string]uint) map[string]int {
	merged := make(map[string]uint)
	for _, candidates := range found {
		for ref, mask := range candidates {
			merged[ref] |= mask
		}
	}
	owners := make(map[string]int)
	for ref, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			owners[ref] = bits.TrailingZeros(mask)
		}
	}
	return owners
}

type ingestStats struct {
	placed         atomic.Int64
	duplicates     atomic.Int64
	unknownMembers atomic.Int64
	invalid        atomic.Int64
}

// placeOrders streams every file again and places each order whose
// reference this file owns, once: repeats of a reference within a file are
// counted as duplicates. Inserts run on up to workers goroutines,
// throttled by limiter.
func placeOrders(
	ctx context.Context,
	orders placer,
	files []string,
	owners map[string]int,
	workers int,
	limiter *rate.Limiter,
) (*ingestStats, error) {
	stats := new(ingestStats)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range files {
		seen := make(map[string]struct{})
		err := streamRecords(ctx, path, func(r record) error {
			if owner, shared := owners[r.Ref]; shared && owner != i {
				stats.duplicates.Add(1)
				return nil
			}
			if _, ok := seen[r.Ref]; ok {
				stats.duplicates.Add(1)
				return nil
			}
			seen[r.Ref] = struct{}{}
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			g.Go(func() error {
				return place(ctx, orders, r, stats)
			})
			return nil
		})
		if err != nil {
			if werr := g.Wait(); werr != nil {
				return stats, werr
			}
			return stats, errors.Wrapf(err, "ingest file %d", i+1)
		}
		slog.Info("pass 3 file done", slog.Int("file", i+1), slog.Int64("placed", stats.placed.Load()))
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func place(ctx context.Context, orders placer, r record, stats *ingestStats) error {
	_, err := orders.Place(ctx, order.PlaceRequest{
		MemberID:    r.MemberID,
		TotalAmount: r.TotalAmount,
		Date:        r.Date,
	})
	var verr *order.ValidationError
	switch {
	case err == nil:
		stats.placed.Add(1)
	case errors.Is(err, member.ErrNotFound):
		stats.unknownMembers.Add(1)
		slog.Warn("unknown member", slog.String("ref", r.Ref), slog.Int64("member_id", r.MemberID))
	case errors.As(err, &verr):
		stats.invalid.Add(1)
		slog.Warn("invalid order", slog.String("ref", r.Ref), slog.String("error", verr.Error()))
	default:
		return errors.Wrapf(err, "place order %s", r.Ref)
	}
	return nil
}
