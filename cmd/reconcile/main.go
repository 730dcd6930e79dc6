// Command reconcile runs the full reconciliation pass over a local music
// library: scan, fingerprint diff, cache invalidation, per-album year
// determination, track updates, and a change report.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/barad1tos/reconciler/internal/cache"
	"github.com/barad1tos/reconciler/internal/catalogapi"
	"github.com/barad1tos/reconciler/internal/config"
	"github.com/barad1tos/reconciler/internal/durable/postgres"
	"github.com/barad1tos/reconciler/internal/errmetrics"
	"github.com/barad1tos/reconciler/internal/invalidate"
	"github.com/barad1tos/reconciler/internal/libstate"
	"github.com/barad1tos/reconciler/internal/model"
	"github.com/barad1tos/reconciler/internal/report"
	"github.com/barad1tos/reconciler/internal/runfilter"
	"github.com/barad1tos/reconciler/internal/scan"
	"github.com/barad1tos/reconciler/internal/scorer"
	"github.com/barad1tos/reconciler/internal/updateexec"
	"github.com/barad1tos/reconciler/internal/yeardetermine"
	pkgconfig "github.com/barad1tos/reconciler/pkg/config"
	"github.com/barad1tos/reconciler/pkg/musicbrainz"
)

var (
	flagLibraryDir    string
	flagConfig        string
	flagDryRun        bool
	flagForce         bool
	flagWatch         bool
	flagStateDir      string
	flagErrorStoreDSN string
)

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a music library's metadata against catalog APIs",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&flagLibraryDir, "library-dir", os.Getenv("RECONCILE_LIBRARY_DIR"), "Library directory to scan")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "Path to a YAML/TOML/JSON config file (optional)")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Compute decisions and write a report without mutating the library")
	rootCmd.Flags().BoolVar(&flagForce, "force", false, "Re-run year determination even for already-processed tracks")
	rootCmd.Flags().BoolVar(&flagWatch, "watch", false, "Watch the library directory and re-reconcile on filesystem changes")
	rootCmd.Flags().StringVar(&flagStateDir, "state-dir", "state", "Directory for on-disk state (library snapshot, caches, pending store, reports)")
	rootCmd.Flags().StringVar(&flagErrorStoreDSN, "error-store-dsn", "", "Postgres DSN for persisting error events read back by reconcile-status (defaults to DATABASE_URL, disabled if neither is set)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	if flagLibraryDir == "" {
		return fmt.Errorf("--library-dir is required")
	}

	v := viper.New()
	config.ApplyDefaults(v)
	if flagConfig != "" {
		v.SetConfigFile(flagConfig)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", flagConfig, err)
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(flagStateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Logs.Directory, 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}

	ctx := context.Background()

	var errorStore *postgres.Store
	if dsn := flagErrorStoreDSN; dsn != "" || os.Getenv("DATABASE_URL") != "" {
		if dsn == "" {
			dsn = pkgconfig.DSN()
		}
		errorStore, err = postgres.Connect(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect error store: %w", err)
		}
		defer errorStore.Close()
	}

	rec, err := newReconciler(cfg, flagLibraryDir, flagStateDir, flagDryRun, flagForce, errorStore)
	if err != nil {
		return fmt.Errorf("initialize reconciler: %w", err)
	}

	summary, err := rec.runOnce(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	slog.Info("reconcile complete", "summary", summary.String())

	if !flagWatch {
		return nil
	}

	return rec.watch(ctx)
}

// reconciler holds every component wired for one running instance, mirroring
// the teacher's single-struct-per-process ingester shape.
type reconciler struct {
	cfg          config.Config
	libraryDir   string
	stateDir     string
	dryRun       bool
	force        bool
	logger       *slog.Logger
	stateManager *libstate.Manager
	pendingStore *cache.JSONPendingStore
	orchestrator *cache.Orchestrator
	determinator *yeardetermine.Determinator
	executor     *updateexec.Executor
	collector    *errmetrics.Collector
	errorStore   *postgres.Store
}

func newReconciler(cfg config.Config, libraryDir, stateDir string, dryRun, force bool, errorStore *postgres.Store) (*reconciler, error) {
	logger := slog.Default()
	bus := cache.NewBus(64, logger)

	albumYearPath := filepath.Join(stateDir, "album_year_cache.json")
	albumYearCache, err := cache.LoadAlbumYearCache(albumYearPath, bus)
	if err != nil {
		return nil, fmt.Errorf("load album year cache: %w", err)
	}

	apiStore, err := cache.NewJSONFileAPIResponseStore(cfg.Caching.APIResultCachePath)
	if err != nil {
		return nil, fmt.Errorf("open api response store: %w", err)
	}
	apiCache := cache.NewAPIResponseCache(apiStore, time.Hour)
	ttl := cache.NewTTLCache(time.Duration(cfg.Caching.DefaultTTLSeconds) * time.Second)
	orchestrator := cache.NewOrchestrator(ttl, albumYearCache, apiCache, bus)

	pendingStore, err := cache.NewJSONPendingStore(filepath.Join(stateDir, "pending_verification.json"))
	if err != nil {
		return nil, fmt.Errorf("open pending store: %w", err)
	}

	mbProvider := catalogapi.NewGuardedProvider(musicbrainz.NewProvider(musicbrainz.New()), 1.0, 5)

	determinator := yeardetermine.New(yeardetermine.Config{
		Weights:             cfg.YearRetrieval.Scoring,
		DefinitiveThreshold: cfg.YearRetrieval.DefinitiveThreshold,
		SuspiciousDelta:     10,
		VerificationPeriod:  time.Duration(cfg.YearRetrieval.PendingVerificationPeriod * float64(time.Hour)),
		Sources:             []catalogapi.Provider{mbProvider},
	}, albumYearCache, pendingStore, logger)

	classifier := errmetrics.NewClassifier()
	rateTracker := errmetrics.NewRateTracker(time.Hour, 5*time.Minute)
	patternDetector := errmetrics.NewPatternDetector(30*time.Minute, 3)
	collector := errmetrics.NewCollector(classifier, rateTracker, patternDetector, logger)
	collector.AddHandler(func(event errmetrics.AlertEvent) {
		logger.Warn("error metrics alert", "name", event.Name, "severity", event.Severity, "signature", event.Error.Signature)
	})

	executor := updateexec.New(&appleScriptRunner{logger: logger}, orchestrator, updateexec.Config{
		DryRun:                dryRun,
		BatchUpdatesEnabled:   cfg.Experimental.BatchUpdatesEnabled,
		MaxBatchSize:          cfg.Experimental.MaxBatchSize,
		BatchTimeoutSeconds:   cfg.AppleScriptTimeouts.BatchUpdate,
		DefaultTimeoutSeconds: cfg.AppleScriptTimeouts.DefaultSecond,
	}, logger)

	return &reconciler{
		cfg:          cfg,
		libraryDir:   libraryDir,
		stateDir:     stateDir,
		dryRun:       dryRun,
		force:        force,
		logger:       logger,
		stateManager: libstate.NewManager(filepath.Join(stateDir, "library_state.json")),
		pendingStore: pendingStore,
		orchestrator: orchestrator,
		determinator: determinator,
		executor:     executor,
		collector:    collector,
		errorStore:   errorStore,
	}, nil
}

// recordError records an error event through the collector and, when an
// error store is configured, persists it so cmd/reconcile-status can serve
// it back across process boundaries.
func (r *reconciler) recordError(ctx context.Context, exceptionType, message, stackTrace string) {
	event := r.collector.Record(exceptionType, message, stackTrace, time.Now())
	if r.errorStore == nil {
		return
	}
	if err := r.errorStore.InsertErrorEvent(ctx, event); err != nil {
		r.logger.Warn("persist error event failed", "err", err)
	}
}

// runOnce performs one full scan-diff-determine-update-report pass.
func (r *reconciler) runOnce(ctx context.Context) (report.RunSummary, error) {
	runID := uuid.NewString()
	r.logger.Info("reconcile pass starting", "run_id", runID, "library_dir", r.libraryDir)

	var summary report.RunSummary

	var scanErrors []string
	records, err := scan.Walk(r.libraryDir, func(path string, scanErr error) {
		scanErrors = append(scanErrors, path)
		r.recordError(ctx, "ScanError", scanErr.Error(), "")
	})
	if err != nil {
		return summary, fmt.Errorf("walk library: %w", err)
	}
	summary.Errors += len(scanErrors)

	tracks := make([]model.Track, 0, len(records))
	for _, rec := range records {
		tracks = append(tracks, rec.Track)
	}

	old := r.stateManager.Load()
	newFingerprints, err := libstate.BuildState(tracks)
	if err != nil {
		return summary, fmt.Errorf("build library state: %w", err)
	}

	changeSet, diffErr := libstate.Diff(old.TrackFingerprints, newFingerprints)
	if diffErr != nil {
		// PossibleCorruption/LibraryRebuild are warnings, not aborts: the
		// computed ChangeSet is still usable, just flagged.
		r.logger.Warn("library diff flagged an anomaly", "err", diffErr)
	}

	plan := invalidate.BuildPlan(changeSet, nil)
	if err := invalidate.Execute(plan, r.orchestrator, true); err != nil {
		r.logger.Warn("non-critical cache invalidation failures", "err", err)
	}

	filter := runfilter.New(nil, r.cfg.Development.TestArtists)
	albums := groupChangedAlbums(tracks, changeSet, r.force, filter)
	if len(albums) == 0 {
		r.logger.Info("no albums need reconciliation this pass", "run_id", runID)
	}

	csvPath := filepath.Join(r.cfg.Logs.Directory, fmt.Sprintf("reconcile_%s.csv", runID))
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return summary, fmt.Errorf("create report file: %w", err)
	}
	defer csvFile.Close()
	writer, err := report.NewWriter(csvFile)
	if err != nil {
		return summary, fmt.Errorf("create report writer: %w", err)
	}

	var rows []report.Row
	now := time.Now()
	for _, album := range albums {
		summary.Processed++
		rows = append(rows, r.reconcileAlbum(ctx, album, now, &summary)...)
	}

	if err := writer.WriteRows(rows); err != nil {
		return summary, fmt.Errorf("write report: %w", err)
	}

	if err := r.stateManager.Save(libstate.State{
		Timestamp:         now,
		LibraryPath:       r.libraryDir,
		TrackCount:        len(tracks),
		TrackFingerprints: newFingerprints,
	}); err != nil {
		return summary, fmt.Errorf("save library state: %w", err)
	}

	if err := r.orchestrator.FlushAll(
		filepath.Join(r.stateDir, "album_year_cache.json"),
		filepath.Join(r.stateDir, "ttl_cache.json"),
	); err != nil {
		return summary, fmt.Errorf("flush caches: %w", err)
	}

	if _, err := r.pendingStore.ReapExpired(time.Duration(r.cfg.YearRetrieval.PendingVerificationPeriod * float64(time.Hour))); err != nil {
		r.logger.Warn("reap expired pending verifications failed", "err", err)
	}

	return summary, nil
}

// albumGroup is one (artist, album) with the tracks that belong to it.
type albumGroup struct {
	Artist string
	Album  string
	Tracks []model.Track
}

func groupChangedAlbums(tracks []model.Track, cs *model.ChangeSet, force bool, filter *runfilter.Filter) []albumGroup {
	byAlbum := make(map[[2]string][]model.Track)
	for _, t := range tracks {
		key := [2]string{t.Artist, t.Album}
		byAlbum[key] = append(byAlbum[key], t)
	}

	var out []albumGroup
	for key, albumTracks := range byAlbum {
		if !force && !albumChanged(albumTracks, cs) {
			continue
		}
		filtered := filter.Apply(albumTracks, nil)
		if len(filtered) == 0 {
			continue
		}
		out = append(out, albumGroup{Artist: key[0], Album: key[1], Tracks: filtered})
	}
	return out
}

func albumChanged(tracks []model.Track, cs *model.ChangeSet) bool {
	for _, t := range tracks {
		if _, ok := cs.Added[t.ID]; ok {
			return true
		}
		if _, ok := cs.Modified[t.ID]; ok {
			return true
		}
	}
	return false
}

func (r *reconciler) reconcileAlbum(ctx context.Context, album albumGroup, now time.Time, summary *report.RunSummary) []report.Row {
	var rows []report.Row

	decision, err := r.determinator.Determine(ctx, album.Artist, album.Album, album.Tracks, scorer.ActivityPeriod{}, r.force, now)
	if err != nil {
		summary.Errors++
		r.recordError(ctx, "YearDeterminationError", err.Error(), "")
		return rows
	}

	if decision.Skip {
		switch {
		case strings.HasPrefix(decision.SkipReason, string(yeardetermine.ReasonAlreadyProcessed)):
			summary.SkippedAlreadyProcessed++
		case strings.HasPrefix(decision.SkipReason, string(yeardetermine.ReasonRecentlyRejected)):
			summary.SkippedRecentRejection++
		case strings.HasPrefix(decision.SkipReason, string(yeardetermine.ReasonYearConsistent)):
			summary.SkippedConsistent++
		}
		return rows
	}

	if decision.Pending {
		if err := r.pendingStore.Set(model.PendingVerificationEntry{
			Artist: album.Artist, Album: album.Album, Reason: decision.PendingWhy, Timestamp: now,
		}); err != nil {
			r.logger.Warn("persist pending verification failed", "artist", album.Artist, "album", album.Album, "err", err)
		}
		summary.PendingVerification++
		return rows
	}

	if !decision.Write {
		return rows
	}

	for _, t := range album.Tracks {
		oldYear := t.Year
		changed, err := r.executor.UpdateTrack(ctx, t, []updateexec.FieldUpdate{{Field: "year", Value: decision.Year}})
		if err != nil {
			summary.Errors++
			r.recordError(ctx, "UpdateTrackError", err.Error(), "")
			continue
		}
		if changed {
			summary.Updated++
		}
		rows = append(rows, report.Row{
			ChangeType: model.ChangeYear,
			Artist:     album.Artist,
			Album:      album.Album,
			TrackName:  t.Name,
			OldYear:    oldYear,
			NewYear:    decision.Year,
			Timestamp:  now,
		})
	}

	return rows
}

func (r *reconciler) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	_ = filepath.WalkDir(r.libraryDir, func(path string, d os.DirEntry, e error) error {
		if e == nil && d.IsDir() {
			_ = watcher.Add(path)
		}
		return nil
	})
	r.logger.Info("watching library for changes", "dir", r.libraryDir)

	debounce := time.NewTimer(time.Hour)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			debounce.Reset(2 * time.Second)

		case <-debounce.C:
			summary, err := r.runOnce(ctx)
			if err != nil {
				r.logger.Error("reconcile pass failed", "err", err)
				continue
			}
			r.logger.Info("reconcile pass complete", "summary", summary.String())

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", "err", werr)
		}
	}
}

// appleScriptRunner is the concrete scriptrunner.Runner shipped with this
// CLI: it shells out to osascript. The scriptrunner package itself stays
// interface-only (the script contract is a caller concern), but a runnable
// entrypoint needs one real implementation to drive against.
type appleScriptRunner struct {
	logger *slog.Logger
}

func (a *appleScriptRunner) Run(ctx context.Context, name string, args []string) (string, error) {
	scriptPath := filepath.Join("scripts", name)
	cmdArgs := append([]string{scriptPath}, args...)

	cmd := exec.CommandContext(ctx, "osascript", cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		a.logger.Warn("script run failed", "script", name, "err", err, "stderr", stderr.String())
		return "", fmt.Errorf("osascript %s: %w", name, err)
	}
	return stdout.String(), nil
}
