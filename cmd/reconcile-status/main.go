// Command reconcile-status serves a small HTTP surface over the error
// metrics recorded during reconciliation runs: liveness, readiness, and a
// JSON snapshot of recent error rate/trend/patterns.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/barad1tos/reconciler/internal/durable/postgres"
	"github.com/barad1tos/reconciler/internal/errmetrics"
	"github.com/barad1tos/reconciler/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	dsn := config.DSN()
	port := config.Env("STATUS_HTTP_PORT", "8090")
	windowHours := 1.0

	db, err := postgres.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	slog.Info("postgres connected")

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(db))
	r.Get("/metrics/errors", errorMetrics(db, time.Duration(windowHours*float64(time.Hour))))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	slog.Info("listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func readyz(db *postgres.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := db.ErrorEventsSince(r.Context(), time.Now().Add(-time.Second)); err != nil {
			http.Error(w, "postgres: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// errorSnapshot is the JSON shape served by /metrics/errors: a
// reconstruction of the error-metrics collector's rate/trend/pattern view,
// computed fresh from the events persisted in the window.
type errorSnapshot struct {
	WindowSeconds float64          `json:"window_seconds"`
	EventCount    int              `json:"event_count"`
	RatePerMinute float64          `json:"rate_per_minute"`
	Trend         errmetrics.Trend `json:"trend"`
	TopPatterns   []patternSummary `json:"top_patterns"`
}

type patternSummary struct {
	Signature   string    `json:"signature"`
	Count       int       `json:"count"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	ImpactScore float64   `json:"impact_score"`
}

func errorMetrics(db *postgres.Store, window time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		events, err := db.ErrorEventsSince(r.Context(), now.Add(-window))
		if err != nil {
			http.Error(w, "load error events: "+err.Error(), http.StatusInternalServerError)
			return
		}

		rate := errmetrics.NewRateTracker(window, time.Minute)
		patterns := errmetrics.NewPatternDetector(window, 1)
		latest := map[string]*errmetrics.Pattern{}
		// ErrorEventsSince returns newest first; the trackers expect
		// chronological order, so replay oldest first.
		for i := len(events) - 1; i >= 0; i-- {
			ev := events[i]
			rate.Record(ev.Timestamp)
			if p := patterns.Record(ev.Signature, ev.Severity, ev.Timestamp); p != nil {
				latest[ev.Signature] = p
			}
		}

		snapshot := errorSnapshot{
			WindowSeconds: window.Seconds(),
			EventCount:    len(events),
			RatePerMinute: rate.RatePerMinute(now),
			Trend:         rate.TrendOverRecentBuckets(now),
		}
		for _, p := range latest {
			snapshot.TopPatterns = append(snapshot.TopPatterns, patternSummary{
				Signature: p.Signature, Count: p.Count,
				FirstSeen: p.FirstSeen, LastSeen: p.LastSeen, ImpactScore: p.ImpactScore,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snapshot)
	}
}

func slogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

