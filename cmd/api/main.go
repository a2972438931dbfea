package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dispatch_bot_backend/internal/admin"
	"dispatch_bot_backend/internal/adapters/storage"
	"dispatch_bot_backend/internal/calendar"
	"dispatch_bot_backend/internal/catalog"
	"dispatch_bot_backend/internal/dedup"
	"dispatch_bot_backend/internal/dispatch"
	"dispatch_bot_backend/internal/email"
	"dispatch_bot_backend/internal/finance"
	apphttp "dispatch_bot_backend/internal/http"
	"dispatch_bot_backend/internal/http/router"
	"dispatch_bot_backend/internal/maps"
	"dispatch_bot_backend/internal/notify"
	"dispatch_bot_backend/internal/onboarding"
	"dispatch_bot_backend/internal/orchestrator"
	"dispatch_bot_backend/internal/outbound"
	"dispatch_bot_backend/internal/rating"
	"dispatch_bot_backend/internal/repository"
	"dispatch_bot_backend/internal/scheduler"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/internal/support"
	"dispatch_bot_backend/internal/webhook"
	"dispatch_bot_backend/internal/whatsapp"
	"dispatch_bot_backend/migrations"
	"dispatch_bot_backend/platform/config"
	"dispatch_bot_backend/platform/db"
	"dispatch_bot_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const storageBucketEnsureErrPrefix = "failed to ensure storage buckets exist: "

// ensureBuckets wraps the retry logic for verifying the MinIO buckets exist.
func ensureBuckets(ctx context.Context, log *logger.Logger, files *storage.MinIOService, buckets ...string) {
	if err := withRetry(ctx, log, "ensure storage buckets", 5, 2*time.Second, func() error {
		return files.EnsureBuckets(ctx, buckets...)
	}); err != nil {
		log.Error("failed to ensure storage buckets exist", "error", err, "buckets", buckets)
		panic(storageBucketEnsureErrPrefix + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.NewWithOptions(cfg.Env, logger.Options{File: cfg.LogFile})
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if cfg.MigrationsEnabled {
		if err := withRetry(ctx, log, "database migrations", 3, 2*time.Second, func() error {
			return db.RunMigrations(ctx, pool, migrations.FS)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	files, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage", "error", err)
		panic("failed to initialize storage: " + err.Error())
	}
	ensureBuckets(ctx, log, files, cfg.GetMinioBucketServicePhotos(), cfg.GetMinioBucketPaymentProofs())

	loc, err := time.LoadLocation(cfg.GetCalendarTimeZone())
	if err != nil {
		log.Warn("unknown time zone, using UTC", "tz", cfg.GetCalendarTimeZone(), "error", err)
		loc = time.UTC
	}

	services, err := catalog.Load(cfg.GetCatalogPath())
	if err != nil {
		log.Error("failed to load services catalog", "error", err)
		panic("failed to load services catalog: " + err.Error())
	}

	repo := repository.New(pool, log)
	routes := maps.NewService(cfg, log)

	wa := whatsapp.NewClient(cfg, log)
	if wa == nil {
		log.Warn("WHATSAPP_URL not configured; outbound messages are dropped and the webhook is disabled")
	}

	queue := outbound.New(wa, log)
	if err := queue.Start(ctx); err != nil {
		panic("failed to start outbound queue: " + err.Error())
	}

	inbound, err := dedup.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize dedup store", "error", err)
		panic("failed to initialize dedup store: " + err.Error())
	}
	defer func() { _ = inbound.Close() }()

	// ========================================================================
	// Engines
	// ========================================================================

	sessions := session.NewStore(cfg.GetSessionIdleTTL())
	fanout := notify.New(queue, sessions, repo, cfg.GetSessionLockTimeout(), log)
	rater := rating.New(repo)

	onb := onboarding.New(onboarding.Deps{
		Store:    repo,
		Catalog:  services,
		Rating:   rater,
		Location: loc,
	})
	disp := dispatch.New(dispatch.Deps{
		Store:       repo,
		Router:      routes,
		Files:       files,
		PhotoBucket: cfg.GetMinioBucketServicePhotos(),
		Sessions:    fanout,
		Rating:      rater,
		Location:    loc,
	})

	if cal := initCalendar(ctx, cfg, log); cal != nil {
		onb.Calendar = cal
		disp.Calendar = cal
	}
	if reminders, closeReminders := initReminderScheduler(cfg, log); reminders != nil {
		onb.Reminders = reminders
		defer closeReminders()
	}

	fin := finance.New(finance.Deps{
		Store:       repo,
		Files:       files,
		ProofBucket: cfg.GetMinioBucketPaymentProofs(),
		Agents:      fanout,
		Mail:        email.NewSender(cfg),
		Rating:      rater,
		Menu:        onb,
		Location:    loc,
	})
	sup := support.New(support.Deps{
		Store:    repo,
		Agents:   fanout,
		Sessions: fanout,
		Rating:   rater,
	})
	onb.Finance = fin
	onb.Support = sup

	roles := orchestrator.New(orchestrator.Deps{
		Identity:     repo,
		Sessions:     sessions,
		Dedup:        inbound,
		Out:          queue,
		Onboarding:   onb,
		Finance:      fin,
		Dispatch:     disp,
		Support:      sup,
		Rating:       rater,
		Log:          log,
		LockTimeout:  cfg.GetSessionLockTimeout(),
		EventTimeout: cfg.GetEventTimeout(),
	})

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	modules := []apphttp.Module{admin.NewModule(repo, sessions, log)}
	if wa != nil {
		modules = append(modules, webhook.NewModule(wa, roles, cfg.GetWhatsAppWebhookSecret(), log))
	}

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  pool,
		Modules: modules,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if waitErr := roles.Wait(shutdownCtx); waitErr != nil {
			log.Warn("in-flight events did not finish", "error", waitErr)
		}
		if closeErr := queue.Close(); closeErr != nil {
			log.Warn("outbound queue close failed", "error", closeErr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func initCalendar(ctx context.Context, cfg *config.Config, log *logger.Logger) *calendar.Client {
	if !cfg.IsCalendarEnabled() {
		log.Warn("calendar not configured; visits are booked without calendar events")
		return nil
	}
	cal, err := calendar.New(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize calendar client", "error", err)
		return nil
	}
	return cal
}

func initReminderScheduler(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; appointment reminders disabled")
		return nil, nil
	}

	reminderClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize reminder scheduler client", "error", err)
		return nil, nil
	}

	return reminderClient, func() {
		_ = reminderClient.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
