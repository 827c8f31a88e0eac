package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/retail-crm/internal/domain/analytics"
	"github.com/xenking/retail-crm/internal/domain/member"
	"github.com/xenking/retail-crm/internal/domain/order"
	"github.com/xenking/retail-crm/internal/domain/product"
	"github.com/xenking/retail-crm/internal/domain/season"
	"github.com/xenking/retail-crm/internal/handler"
	"github.com/xenking/retail-crm/internal/storage/postgres"
	"github.com/xenking/retail-crm/pkg/health"
	"github.com/xenking/retail-crm/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	memberRepo := postgres.NewMemberRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	seasonRepo := postgres.NewSeasonRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services.
	orderService := order.NewService(orderRepo, memberRepo, m.MeterProvider())
	analyticsService := analytics.NewService(postgres.NewSnapshots(pool), m.TracerProvider())

	if cfg.VerifyOnStart {
		if err := verifyMonetary(ctx, lg, orderService); err != nil {
			return err
		}
	}
	healthSvc.SetReady(true)

	h := handler.NewHandler(handler.Services{
		Members:   member.NewService(memberRepo),
		Orders:    orderService,
		Products:  product.NewService(productRepo),
		Seasons:   season.NewService(seasonRepo),
		Analytics: analyticsService,
	}, handler.NewSecurity(apikeyRepo, []byte(cfg.APIKeyPepper)))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("retail-crm", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// verifyMonetary repairs members whose stored monetary value drifted from
// their orders, e.g. after writes made outside the service.
func verifyMonetary(ctx context.Context, lg *zap.Logger, orders *order.Service) error {
	repaired, err := orders.VerifyMonetary(ctx)
	if err != nil {
		return errors.Wrap(err, "verify monetary")
	}
	for _, d := range repaired {
		lg.Warn("Repaired member monetary",
			zap.Int64("member_id", d.MemberID),
			zap.Int64("stored", d.Stored),
			zap.Int64("actual", d.Actual),
		)
	}
	lg.Info("Monetary verified", zap.Int("repaired", len(repaired)))
	return nil
}
