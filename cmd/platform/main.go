package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/amal-center/platform/internal/api"
	"github.com/amal-center/platform/internal/calendar"
	"github.com/amal-center/platform/internal/impact"
	"github.com/amal-center/platform/internal/notification"
	"github.com/amal-center/platform/internal/notifier"
	"github.com/amal-center/platform/internal/rescheduling"
	"github.com/amal-center/platform/internal/session"
	"github.com/amal-center/platform/internal/shared/auth"
	"github.com/amal-center/platform/internal/shared/config"
	"github.com/amal-center/platform/internal/shared/database"
	"github.com/amal-center/platform/internal/shared/events"
	"github.com/amal-center/platform/internal/shared/metrics"
	secmiddleware "github.com/amal-center/platform/internal/shared/middleware"
	"github.com/amal-center/platform/internal/subscription"
	"github.com/amal-center/platform/internal/timeline"
	"github.com/amal-center/platform/internal/validation"
)

// App holds all application dependencies
type App struct {
	Config   *config.Config
	DB       *database.DB
	Bus      *events.Bus
	Notifier *notifier.Notifier
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Server.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	app := &App{Config: cfg}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database unavailable: %v\n", err)
		os.Exit(1)
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	// Event bus is optional in development; commits still succeed locally
	// when KurrentDB is down, the relay just has nowhere to forward.
	bus, err := events.NewBus(ctx, cfg.KurrentDB)
	if err != nil {
		fmt.Printf("Warning: KurrentDB not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		app.Bus = bus
		defer bus.Close()
		fmt.Println("KurrentDB event bus initialized")
	}

	// Holiday calendar: persisted in Postgres, served from memory.
	calendarRepo := calendar.NewRepository(db.Pool)
	holidays, err := calendarRepo.ListHolidays(ctx)
	if err != nil {
		fmt.Printf("Warning: failed to load holidays: %v\n", err)
	}
	cal := calendar.New(
		calendar.WithWeekendNames(cfg.Scheduling.WeekendDays...),
		calendar.WithHolidays(holidays),
	)

	// Realtime notifier with bus relay.
	rt := notifier.New(logger)
	defer rt.Close()
	if app.Bus != nil {
		relay := notifier.NewRelay(app.Bus, notifier.DefaultBackoff(), logger)
		relay.Start(ctx)
		defer relay.Stop()
		rt.WithRelay(relay)
	}

	// Notification dispatcher (log provider until a delivery integration
	// is configured).
	dispatcher := notification.NewDispatcher(
		notification.NewLogProvider(logger),
		notification.DispatcherConfig{
			Workers:       cfg.Notifications.Workers,
			BufferSize:    cfg.Notifications.BufferSize,
			RetryAttempts: 3,
			RetryDelay:    30 * time.Second,
		},
		logger,
	)
	if err := dispatcher.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start dispatcher: %v\n", err)
		os.Exit(1)
	}
	defer dispatcher.Stop()

	// Core pipeline.
	subRepo := subscription.NewRepository(db.Pool)
	sessionRepo := session.NewRepository(db.Pool)
	tl := timeline.NewManager(cal)
	validator := validation.NewService(subRepo, sessionRepo, cal, cfg.Scheduling.MinFreezeReasonLen, logger)
	engine := rescheduling.NewEngine(
		sessionRepo, cal, rescheduling.NewGuard(),
		cfg.Scheduling.HorizonDays, cfg.Scheduling.MaxBatchSize, cfg.Scheduling.StoreTimeout, logger,
	)

	var publisher impact.Publisher = noopPublisher{}
	if app.Bus != nil {
		publisher = app.Bus
	}
	impactSvc := impact.NewService(
		subRepo, sessionRepo, validator, tl, engine, cal,
		publisher, rt, dispatcher,
		impact.Billing{SessionRate: cfg.Billing.SessionRate, Currency: cfg.Billing.Currency},
		logger,
	)

	handler := api.NewHandler(validator, tl, engine, impactSvc, subRepo, sessionRepo, rt)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.RateLimiter(100, 200))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}
		r.Mount("/", handler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Amal Center Therapy Platform")
	fmt.Println("============================================")
	fmt.Printf("Environment:  %s\n", cfg.Server.Env)
	fmt.Printf("Server:       http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:          http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:       http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Weekend:      %v\n", cfg.Scheduling.WeekendDays)
	fmt.Printf("Holidays:     %d loaded\n", len(holidays))
	fmt.Printf("KurrentDB:    %s:%d\n", cfg.KurrentDB.Host, cfg.KurrentDB.Port)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// noopPublisher stands in for the event bus when KurrentDB is unavailable.
type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.Event) error { return nil }

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Amal Center Therapy Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["kurrentdb"] = "not ready: " + err.Error()
			} else {
				checks["kurrentdb"] = "ready"
			}
		} else {
			checks["kurrentdb"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
