// Command order-ingest loads historical orders from gzip-compressed NDJSON
// exports. Exports may overlap and may repeat lines; every order reference is
// placed at most once, from its first occurrence in the first file that
// contains it.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/time/rate"

	"github.com/xenking/retail-crm/internal/domain/order"
	"github.com/xenking/retail-crm/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		workers     int
		perSecond   float64
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.ndjson.gz order exports")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "concurrent order inserts")
	flag.Float64Var(&perSecond, "rate", 500, "maximum orders inserted per second")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, workers, rate.Limit(perSecond)); err != nil {
		slog.Error("order ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, workers int, limit rate.Limit) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.ndjson.gz"))
	if err != nil {
		return errors.Wrap(err, "list exports")
	}
	if len(files) == 0 {
		slog.Info("no exports found", slog.String("dir", dataDir))
		return nil
	}
	if len(files) > maxFiles {
		return errors.Errorf("too many exports: %d (max %d)", len(files), maxFiles)
	}
	slices.Sort(files)

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := buildFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding references shared between exports")
	owners, err := findOwners(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find shared references")
	}
	slog.Info("shared references found", slog.Int("count", len(owners)))

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	orders := order.NewService(
		postgres.NewOrderRepository(pool),
		postgres.NewMemberRepository(pool),
		noop.NewMeterProvider(),
	)

	start := time.Now()
	stats, err := placeOrders(ctx, orders, files, owners, workers, rate.NewLimiter(limit, workers))
	if err != nil {
		return errors.Wrap(err, "place orders")
	}
	slog.Info("pass 3 complete",
		slog.Int64("placed", stats.placed.Load()),
		slog.Int64("duplicates", stats.duplicates.Load()),
		slog.Int64("unknown_members", stats.unknownMembers.Load()),
		slog.Int64("invalid", stats.invalid.Load()),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}
