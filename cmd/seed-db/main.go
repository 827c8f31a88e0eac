package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/retail-crm/internal/domain/auth"
	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/order"
	"github.com/xenking/retail-crm/internal/domain/product"
	"github.com/xenking/retail-crm/internal/domain/season"
	"github.com/xenking/retail-crm/internal/storage/postgres"
)

type fixtures struct {
	Members []struct {
		Name string `json:"name"`
		Sex  string `json:"sex"`
		Age  int    `json:"age"`
	} `json:"members"`
	Materials []string `json:"materials"`
	Products  []struct {
		Name          string          `json:"name"`
		Price         decimal.Decimal `json:"price"`
		OnHandBalance int             `json:"on_hand_balance"`
		LeadingTime   int             `json:"leading_time"`
		ReorderPoint  decimal.Decimal `json:"reorder_point"`
		Materials     []string        `json:"materials"`
	} `json:"products"`
	Orders []struct {
		Member      int    `json:"member"`
		TotalAmount int64  `json:"total_amount"`
		Date        string `json:"date"`
		Products    []int  `json:"products"`
	} `json:"orders"`
	SeasonSales []struct {
		Year   int   `json:"year"`
		Season int   `json:"season"`
		Sale   int64 `json:"sale"`
	} `json:"season_sales"`
}

func main() {
	var (
		databaseURL  string
		fixturesFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&fixturesFile, "fixtures-file", "db/seed/fixtures.json", "path to fixtures JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or CRM_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CRM_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CRM_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CRM_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CRM_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, fixturesFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, fixturesFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	members := postgres.NewMemberRepository(pool)
	n, err := members.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "count members")
	}
	if n > 0 {
		slog.Info("database already holds members, skipping fixtures", slog.Int("members", n))
		return nil
	}

	f, err := readFixtures(fixturesFile)
	if err != nil {
		return err
	}
	return seedFixtures(ctx, pool, f)
}

func readFixtures(path string) (*fixtures, error) {
	slog.Info("reading fixtures file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read fixtures file")
	}

	var f fixtures
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse fixtures JSON")
	}
	return &f, nil
}

func seedFixtures(ctx context.Context, pool *pgxpool.Pool, f *fixtures) error {
	memberRepo := postgres.NewMemberRepository(pool)
	members := member.NewService(memberRepo)
	orders := order.NewService(postgres.NewOrderRepository(pool), memberRepo, noop.NewMeterProvider())
	products := product.NewService(postgres.NewProductRepository(pool))
	sales := season.NewService(postgres.NewSeasonRepository(pool))

	memberIDs := make([]int64, 0, len(f.Members))
	for _, m := range f.Members {
		created, err := members.Register(ctx, member.RegisterRequest{Name: m.Name, Sex: m.Sex, Age: m.Age})
		if err != nil {
			return errors.Wrapf(err, "register member %q", m.Name)
		}
		memberIDs = append(memberIDs, created.ID)
		slog.Info("registered member", slog.Int64("id", created.ID), slog.String("name", created.Name))
	}

	materialIDs := make(map[string]int64, len(f.Materials))
	for _, name := range f.Materials {
		m, err := products.CreateMaterial(ctx, name)
		if err != nil {
			return errors.Wrapf(err, "create material %q", name)
		}
		materialIDs[m.Name] = m.ID
	}
	slog.Info("created materials", slog.Int("count", len(materialIDs)))

	productIDs := make([]int64, 0, len(f.Products))
	for _, p := range f.Products {
		created, err := products.Create(ctx, product.Product{
			Name:          p.Name,
			Price:         p.Price,
			OnHandBalance: p.OnHandBalance,
			LeadingTime:   p.LeadingTime,
			ReorderPoint:  p.ReorderPoint,
		})
		if err != nil {
			return errors.Wrapf(err, "create product %q", p.Name)
		}
		for _, name := range p.Materials {
			id, ok := materialIDs[name]
			if !ok {
				return errors.Errorf("product %q: unknown material %q", p.Name, name)
			}
			if _, err := products.AddMaterial(ctx, created.ID, id); err != nil {
				return errors.Wrapf(err, "add material %q to product %q", name, p.Name)
			}
		}
		productIDs = append(productIDs, created.ID)
		slog.Info("created product", slog.Int64("id", created.ID), slog.String("name", created.Name))
	}

	for i, o := range f.Orders {
		if o.Member < 0 || o.Member >= len(memberIDs) {
			return errors.Errorf("order %d: member index %d out of range", i, o.Member)
		}
		date, err := time.Parse(time.DateOnly, o.Date)
		if err != nil {
			return errors.Wrapf(err, "order %d: parse date", i)
		}
		placed, err := orders.Place(ctx, order.PlaceRequest{
			MemberID:    memberIDs[o.Member],
			TotalAmount: o.TotalAmount,
			Date:        date,
		})
		if err != nil {
			return errors.Wrapf(err, "place order %d", i)
		}
		for _, idx := range o.Products {
			if idx < 0 || idx >= len(productIDs) {
				return errors.Errorf("order %d: product index %d out of range", i, idx)
			}
			if _, err := products.AttachToOrder(ctx, placed.ID, productIDs[idx]); err != nil {
				return errors.Wrapf(err, "attach product to order %d", placed.ID)
			}
		}
	}
	slog.Info("placed orders", slog.Int("count", len(f.Orders)))

	for _, s := range f.SeasonSales {
		if _, err := sales.Record(ctx, season.Sale{Year: s.Year, Season: s.Season, Amount: s.Sale}); err != nil {
			return errors.Wrapf(err, "record season sale %d/%d", s.Year, s.Season)
		}
	}
	slog.Info("recorded season sales", slog.Int("count", len(f.SeasonSales)))

	return nil
}

func seedAPIKey(ctx context.Context, keys auth.Repository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	if err := keys.Create(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashHex([]byte(pepper), apiKey),
		Name:    "Default key",
		Scopes:  []string{auth.ScopeWrite},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("name", "Default key"))

	return nil
}
