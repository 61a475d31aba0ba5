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

	"github.com/lawjfmiranda/jurbot1/internal/admin"
	"github.com/lawjfmiranda/jurbot1/internal/calendar"
	"github.com/lawjfmiranda/jurbot1/internal/classifier"
	"github.com/lawjfmiranda/jurbot1/internal/events"
	apphttp "github.com/lawjfmiranda/jurbot1/internal/http"
	"github.com/lawjfmiranda/jurbot1/internal/http/router"
	"github.com/lawjfmiranda/jurbot1/internal/intake"
	intakerepo "github.com/lawjfmiranda/jurbot1/internal/intake/repository"
	"github.com/lawjfmiranda/jurbot1/internal/meetings"
	meetingsrepo "github.com/lawjfmiranda/jurbot1/internal/meetings/repository"
	"github.com/lawjfmiranda/jurbot1/internal/notification"
	"github.com/lawjfmiranda/jurbot1/internal/qualification"
	"github.com/lawjfmiranda/jurbot1/internal/scheduler"
	"github.com/lawjfmiranda/jurbot1/internal/scheduling"
	"github.com/lawjfmiranda/jurbot1/internal/webhook"
	"github.com/lawjfmiranda/jurbot1/internal/whatsapp"
	"github.com/lawjfmiranda/jurbot1/platform/config"
	"github.com/lawjfmiranda/jurbot1/platform/db"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
	"github.com/lawjfmiranda/jurbot1/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	var adminStore admin.Store
	if cfg.IsRedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		adminStore = admin.NewRedisStore(rdb)
		log.Info("admin control state on redis", "addr", cfg.GetRedisAddr())
	} else {
		adminStore = admin.NewMemoryStore()
		log.Warn("REDIS_ADDR not configured; admin control state is in-memory")
	}
	control := admin.NewControl(adminStore, cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	catalog := qualification.Default()
	qualifier := qualification.NewEngine(catalog)

	var classifiers []classifier.Classifier
	gemini, err := classifier.NewGeminiClassifier(ctx, cfg, catalog.Names(), log)
	if err != nil {
		log.Error("failed to initialize gemini classifier, continuing with keywords only", "error", err)
	}
	if gemini != nil {
		classifiers = append(classifiers, gemini)
	}
	classifiers = append(classifiers, classifier.NewKeywordClassifier(catalog))
	chain := classifier.NewChain(classifiers...)

	loc, err := time.LoadLocation(cfg.GetTimezone())
	if err != nil {
		log.Warn("invalid timezone, falling back to UTC", "timezone", cfg.GetTimezone())
		loc = time.UTC
	}

	calendarClient := calendar.NewClient(cfg, log)
	allocator := scheduling.NewAllocator(calendarClient, calendarClient, log, scheduling.Options{
		Location:          loc,
		BusinessStartHour: cfg.GetBusinessStartHour(),
		BusinessEndHour:   cfg.GetBusinessEndHour(),
		SlotDuration:      cfg.GetSlotDuration(),
		HoldTTL:           cfg.GetHoldTTL(),
	})

	whatsappClient := whatsapp.NewClient(cfg, log)

	tasks := scheduler.NewClient(cfg)
	defer func() {
		_ = tasks.Close()
	}()

	dispatcher := notification.NewDispatcher(cfg, log)
	notifier := notification.NewNotifier(tasks, dispatcher, cfg.IsRedisEnabled(), log)

	subscriber := notification.NewSubscriber(whatsappClient, cfg, log)
	subscriber.RegisterHandlers(eventBus)

	meetingsService := meetings.NewService(meetingsrepo.New(pool), tasks, log)

	engine := intake.NewEngine(intake.Deps{
		Store:       intakerepo.New(pool),
		Classifier:  chain,
		Qualifier:   qualifier,
		Allocator:   allocator,
		Control:     control,
		Bus:         eventBus,
		Notifier:    notifier,
		Meetings:    meetingsService,
		Log:         log,
		DedupWindow: cfg.GetDedupWindow(),
	})

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	val := validator.New()

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			webhook.NewModule(engine, whatsappClient, val, log),
			admin.NewModule(control, val, log),
		},
	}

	httpEngine := router.New(app)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpEngine,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	log.Info("server stopped")
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
