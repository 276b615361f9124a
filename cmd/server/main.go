package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"

	accounthandler "portal/internal/accounts/handler"
	accountservice "portal/internal/accounts/service"
	accountstore "portal/internal/accounts/store"
	apphandler "portal/internal/applications/handler"
	"portal/internal/applications/limits"
	appmetrics "portal/internal/applications/metrics"
	"portal/internal/applications/reference"
	appservice "portal/internal/applications/service"
	appstore "portal/internal/applications/store"
	"portal/internal/audit"
	auditmetrics "portal/internal/audit/metrics"
	"portal/internal/audit/relay"
	auditstore "portal/internal/audit/store"
	jwttoken "portal/internal/jwt_token"
	"portal/internal/notify"
	"portal/internal/platform/config"
	"portal/internal/platform/httpserver"
	"portal/internal/platform/kafka"
	"portal/internal/platform/logger"
	"portal/internal/platform/metrics"
	"portal/internal/platform/postgres"
	"portal/internal/platform/redis"
	"portal/internal/platform/tracing"
	rlmetrics "portal/internal/ratelimit/metrics"
	rlmiddleware "portal/internal/ratelimit/middleware"
	rlservice "portal/internal/ratelimit/service"
	"portal/internal/ratelimit/store/counter"
	"portal/pkg/platform/circuit"
	adminmw "portal/pkg/platform/middleware/admin"
	authmw "portal/pkg/platform/middleware/auth"
)

const demoPassword = "portal-demo-password"

type stores struct {
	accounts     accountservice.Store
	applications interface {
		appservice.Store
		limits.Store
	}
	audit interface {
		audit.Store
		relay.Outbox
	}
}

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer shutdownWithTimeout(log, "tracing", tp.Shutdown)

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}
	st := buildStores(db, log)

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
	}
	limiter, sweeper, err := buildLimiter(cfg, rc, log)
	if err != nil {
		return err
	}
	defer func() { <-sweeper.Stop().Done() }()

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	accounts := accountservice.New(st.accounts, jwtService,
		accountservice.WithLogger(log),
		accountservice.WithAttemptLimiter(limiter),
		accountservice.WithTokenTTL(cfg.Auth.AccessTokenTTL),
	)
	if err := seedDemoAccounts(ctx, cfg.SeedDemoAccounts, db == nil, accounts, log); err != nil {
		return err
	}

	auditMetrics := auditmetrics.New()
	recorder := audit.NewRecorder(st.audit, audit.WithLogger(log), audit.WithMetrics(auditMetrics))

	opts := []appservice.Option{
		appservice.WithLogger(log),
		appservice.WithMetrics(appmetrics.New()),
		appservice.WithAuditRecorder(recorder),
		appservice.WithTracer(otel.Tracer("portal/applications")),
	}
	if cfg.Notify.Enabled {
		notifier, err := notify.NewFromConfig(ctx, cfg.Notify, notify.WithLogger(log))
		if err != nil {
			return err
		}
		opts = append(opts, appservice.WithNotifier(notifier))
	}
	applications := appservice.New(st.applications, accounts,
		limits.New(st.applications), reference.New(), opts...)

	kc, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		return err
	}
	if kc != nil {
		defer kc.Close()
		auditRelay, err := startRelay(ctx, cfg.Kafka, kc, st.audit, auditMetrics, log)
		if err != nil {
			return err
		}
		defer func() { <-auditRelay.Stop().Done() }()
	}

	router := newRouter(routerDeps{
		accounts:     accounthandler.New(accounts, log),
		applications: apphandler.New(applications, log),
		authMW:       authmw.RequireAuth(jwttoken.NewAdapter(jwtService), log),
		adminMW:      adminmw.RequireAdministrator(accounts, log),
		ipLimit:      rlmiddleware.ByIP(limiter, cfg.RateLimit.IPRequestsPerMin, time.Minute, log),
		publicLimit:  cfg.RateLimit.IPRequestsPerMin,
		metrics:      metrics.New(),
		ready:        readiness(db, rc),
	})

	srv := httpserver.New(cfg.Addr, router, log, httpserver.DefaultTimeouts)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting portal", "addr", cfg.Addr, "env", cfg.Environment,
			"postgres", db != nil, "redis", rc != nil, "kafka", kc != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down portal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildStores picks Postgres when a database is configured and the in-memory
// stores otherwise.
func buildStores(db *sql.DB, log *slog.Logger) stores {
	if db == nil {
		log.Warn("DATABASE_URL not set; using in-memory stores")
		return stores{
			accounts:     accountstore.NewInMemory(),
			applications: appstore.NewInMemory(),
			audit:        auditstore.NewInMemory(),
		}
	}
	return stores{
		accounts:     accountstore.NewPostgres(db),
		applications: appstore.NewPostgres(db),
		audit:        auditstore.NewPostgres(db),
	}
}

// buildLimiter backs rate limits with Redis when configured, falling back to
// per-instance counters while Redis is unreachable. The returned sweeper keeps
// the per-instance counters bounded and must be stopped by the caller.
func buildLimiter(cfg config.Server, rc *redis.Client, log *slog.Logger) (*rlservice.Service, *counter.Sweeper, error) {
	m := rlmetrics.New()
	local := counter.NewInMemory()
	var store counter.Store = local
	if rc != nil {
		store = counter.NewResilient(counter.NewRedis(rc.Client), local,
			circuit.New("ratelimit-redis",
				circuit.WithFailureThreshold(3),
				circuit.WithSuccessThreshold(2),
				circuit.WithCooldown(10*time.Second),
			), log, counter.WithDegradedGauge(m))
	}
	svc, err := rlservice.New(store,
		rlservice.WithLogger(log),
		rlservice.WithMetrics(m),
		rlservice.WithAttemptPolicy(cfg.RateLimit.LoginMaxAttempts, cfg.RateLimit.LoginWindow),
	)
	if err != nil {
		return nil, nil, err
	}
	sweeper := counter.NewSweeper(local, log)
	if err := sweeper.Start(cfg.RateLimit.SweepSchedule); err != nil {
		return nil, nil, err
	}
	return svc, sweeper, nil
}

// seedDemoAccounts seeds the demo logins for in-memory development only.
func seedDemoAccounts(ctx context.Context, enabled, inMemory bool, accounts *accountservice.Service, log *slog.Logger) error {
	if !enabled {
		return nil
	}
	if !inMemory {
		log.Warn("SEED_DEMO_ACCOUNTS ignored with a configured database")
		return nil
	}
	seeded, err := accounts.SeedDemo(ctx, demoPassword)
	if err != nil {
		return err
	}
	for _, a := range seeded {
		log.Info("seeded demo account", "email", a.Email, "kind", a.Kind, "role", a.Role)
	}
	return nil
}

func startRelay(ctx context.Context, cfg config.KafkaConfig, kc *kgo.Client, outbox relay.Outbox, m *auditmetrics.Metrics, log *slog.Logger) (*relay.Relay, error) {
	if err := kafka.EnsureTopic(ctx, kc, cfg.AuditTopic, 3, 1); err != nil {
		return nil, err
	}
	r := relay.New(outbox, kc, cfg.AuditTopic,
		relay.WithLogger(log),
		relay.WithMetrics(m),
		relay.WithBatchSize(cfg.RelayBatch),
	)
	if err := r.Start(ctx, cfg.RelaySchedule); err != nil {
		return nil, err
	}
	return r, nil
}

func readiness(db *sql.DB, rc *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
		}
		if rc != nil {
			return rc.Health(ctx)
		}
		return nil
	}
}

func shutdownWithTimeout(log *slog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn("shutdown failed", "component", name, "error", err)
	}
}
