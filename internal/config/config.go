// Package config validates and exposes the structured configuration
// contract (spec §6.4). It never reads a config file itself — loading
// YAML/env sources into a *viper.Viper is a caller concern; this package
// applies defaults, validates required values, and hydrates a typed
// Config.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/barad1tos/reconciler/internal/scorer"
)

// Caching holds the generic cache layer's settings.
type Caching struct {
	DefaultTTLSeconds      int
	APIResultCachePath     string
	CleanupIntervalSeconds int
}

// YearRetrieval holds the year-determination pipeline's settings.
type YearRetrieval struct {
	APITimeoutSeconds         float64
	ProcessingBatchSize       int
	DefinitiveThreshold       int
	MinValidYear              int
	Scoring                   scorer.Weights
	RemasterKeywords          []string
	PendingVerificationPeriod float64 // hours
}

// Experimental holds feature-flagged behavior.
type Experimental struct {
	BatchUpdatesEnabled bool
	MaxBatchSize        int
}

// AppleScriptTimeouts holds the external-script surface's per-operation
// timeouts (seconds). Zero means "fall through to the next default in the
// resolution chain" (see internal/updateexec).
type AppleScriptTimeouts struct {
	BatchUpdate   float64
	DefaultSecond float64
}

// LibrarySnapshot controls fingerprint-based scan skipping.
type LibrarySnapshot struct {
	Enabled bool
}

// Development holds testing-only knobs that must never be set in
// production configuration.
type Development struct {
	TestArtists []string
}

// Logs controls on-disk report/log placement.
type Logs struct {
	Directory string
}

// Config is the single structured configuration injected at startup.
type Config struct {
	Caching             Caching
	YearRetrieval       YearRetrieval
	Experimental        Experimental
	AppleScriptTimeouts AppleScriptTimeouts
	LibrarySnapshot     LibrarySnapshot
	Development         Development
	Logs                Logs
}

// ApplyDefaults seeds v with the §6.4 defaults, mirroring the Python
// original's scoring defaults plus conservative operational defaults. Call
// this before v.ReadInConfig so a config file or environment variable can
// still override any of them.
func ApplyDefaults(v *viper.Viper) {
	weights := scorer.DefaultWeights()

	v.SetDefault("caching.default_ttl_seconds", 86400)
	v.SetDefault("caching.api_result_cache_path", "cache/api_results.json")
	v.SetDefault("caching.cleanup_interval_seconds", 3600)

	v.SetDefault("year_retrieval.api_timeout", 10.0)
	v.SetDefault("year_retrieval.processing.batch_size", 5)
	v.SetDefault("year_retrieval.definitive_threshold", weights.DefinitiveThreshold)
	v.SetDefault("year_retrieval.min_valid_year", weights.MinValidYear)
	v.SetDefault("year_retrieval.remaster_keywords", weights.RemasterKeywords)
	v.SetDefault("year_retrieval.pending_verification.period_hours", 168.0)

	v.SetDefault("year_retrieval.scoring.base", weights.Base)
	v.SetDefault("year_retrieval.scoring.artist_exact", weights.ArtistExact)
	v.SetDefault("year_retrieval.scoring.artist_substring", weights.ArtistSubstring)
	v.SetDefault("year_retrieval.scoring.artist_cross_script", weights.ArtistCrossScript)
	v.SetDefault("year_retrieval.scoring.artist_mismatch", weights.ArtistMismatch)
	v.SetDefault("year_retrieval.scoring.soundtrack_compensation", weights.SoundtrackCompensation)
	v.SetDefault("year_retrieval.scoring.album_exact", weights.AlbumExact)
	v.SetDefault("year_retrieval.scoring.perfect_bonus", weights.PerfectBonus)
	v.SetDefault("year_retrieval.scoring.album_variation", weights.AlbumVariation)
	v.SetDefault("year_retrieval.scoring.album_substring_mismatch", weights.AlbumSubstringMismatch)
	v.SetDefault("year_retrieval.scoring.album_unrelated", weights.AlbumUnrelated)
	v.SetDefault("year_retrieval.scoring.type_album", weights.TypeAlbum)
	v.SetDefault("year_retrieval.scoring.type_ep_single", weights.TypeEPSingle)
	v.SetDefault("year_retrieval.scoring.type_compilation", weights.TypeCompilation)
	v.SetDefault("year_retrieval.scoring.status_official", weights.StatusOfficial)
	v.SetDefault("year_retrieval.scoring.status_bootleg", weights.StatusBootleg)
	v.SetDefault("year_retrieval.scoring.status_promo", weights.StatusPromo)
	v.SetDefault("year_retrieval.scoring.reissue_penalty", weights.ReissuePenalty)
	v.SetDefault("year_retrieval.scoring.release_group_first_date_match", weights.ReleaseGroupFirstDateMatch)
	v.SetDefault("year_retrieval.scoring.year_before_start_max_penalty", weights.YearBeforeStartMaxPenalty)
	v.SetDefault("year_retrieval.scoring.year_before_start_grace_years", weights.YearBeforeStartGraceYears)
	v.SetDefault("year_retrieval.scoring.year_after_end_max_penalty", weights.YearAfterEndMaxPenalty)
	v.SetDefault("year_retrieval.scoring.year_after_end_grace_years", weights.YearAfterEndGraceYears)
	v.SetDefault("year_retrieval.scoring.year_near_start_bonus", weights.YearNearStartBonus)
	v.SetDefault("year_retrieval.scoring.year_diff_per_year_penalty", weights.YearDiffPerYearPenalty)
	v.SetDefault("year_retrieval.scoring.year_diff_max_penalty", weights.YearDiffMaxPenalty)
	v.SetDefault("year_retrieval.scoring.country_artist_region", weights.CountryArtistRegion)
	v.SetDefault("year_retrieval.scoring.country_major_market", weights.CountryMajorMarket)
	v.SetDefault("year_retrieval.scoring.source_musicbrainz", weights.SourceMusicBrainz)
	v.SetDefault("year_retrieval.scoring.source_discogs", weights.SourceDiscogs)
	v.SetDefault("year_retrieval.scoring.source_itunes", weights.SourceITunes)
	v.SetDefault("year_retrieval.scoring.source_lastfm", weights.SourceLastFM)
	v.SetDefault("year_retrieval.scoring.future_year_penalty", weights.FutureYearPenalty)

	v.SetDefault("experimental.batch_updates_enabled", false)
	v.SetDefault("experimental.max_batch_size", 25)

	v.SetDefault("applescript_timeout_seconds", 60.0)

	v.SetDefault("library_snapshot.enabled", true)

	v.SetDefault("logs.directory", "logs")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// Load validates and hydrates a Config from v. Callers must have already
// applied ApplyDefaults and, if desired, called v.ReadInConfig before
// invoking Load.
func Load(v *viper.Viper) (Config, error) {
	if err := validateRequired(v); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Caching: Caching{
			DefaultTTLSeconds:      v.GetInt("caching.default_ttl_seconds"),
			APIResultCachePath:     v.GetString("caching.api_result_cache_path"),
			CleanupIntervalSeconds: v.GetInt("caching.cleanup_interval_seconds"),
		},
		YearRetrieval: YearRetrieval{
			APITimeoutSeconds:         v.GetFloat64("year_retrieval.api_timeout"),
			ProcessingBatchSize:       v.GetInt("year_retrieval.processing.batch_size"),
			DefinitiveThreshold:       v.GetInt("year_retrieval.definitive_threshold"),
			MinValidYear:              v.GetInt("year_retrieval.min_valid_year"),
			Scoring:                   loadScoringWeights(v),
			RemasterKeywords:          v.GetStringSlice("year_retrieval.remaster_keywords"),
			PendingVerificationPeriod: v.GetFloat64("year_retrieval.pending_verification.period_hours"),
		},
		Experimental: Experimental{
			BatchUpdatesEnabled: v.GetBool("experimental.batch_updates_enabled"),
			MaxBatchSize:        v.GetInt("experimental.max_batch_size"),
		},
		AppleScriptTimeouts: AppleScriptTimeouts{
			BatchUpdate:   v.GetFloat64("applescript_timeouts.batch_update"),
			DefaultSecond: v.GetFloat64("applescript_timeout_seconds"),
		},
		LibrarySnapshot: LibrarySnapshot{
			Enabled: v.GetBool("library_snapshot.enabled"),
		},
		Development: Development{
			TestArtists: v.GetStringSlice("development.test_artists"),
		},
		Logs: Logs{
			Directory: v.GetString("logs.directory"),
		},
	}

	if err := validateRanges(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadScoringWeights(v *viper.Viper) scorer.Weights {
	return scorer.Weights{
		Base:                       v.GetInt("year_retrieval.scoring.base"),
		ArtistExact:                v.GetInt("year_retrieval.scoring.artist_exact"),
		ArtistSubstring:            v.GetInt("year_retrieval.scoring.artist_substring"),
		ArtistCrossScript:          v.GetInt("year_retrieval.scoring.artist_cross_script"),
		ArtistMismatch:             v.GetInt("year_retrieval.scoring.artist_mismatch"),
		SoundtrackCompensation:     v.GetInt("year_retrieval.scoring.soundtrack_compensation"),
		AlbumExact:                 v.GetInt("year_retrieval.scoring.album_exact"),
		PerfectBonus:               v.GetInt("year_retrieval.scoring.perfect_bonus"),
		AlbumVariation:             v.GetInt("year_retrieval.scoring.album_variation"),
		AlbumSubstringMismatch:     v.GetInt("year_retrieval.scoring.album_substring_mismatch"),
		AlbumUnrelated:             v.GetInt("year_retrieval.scoring.album_unrelated"),
		TypeAlbum:                  v.GetInt("year_retrieval.scoring.type_album"),
		TypeEPSingle:               v.GetInt("year_retrieval.scoring.type_ep_single"),
		TypeCompilation:            v.GetInt("year_retrieval.scoring.type_compilation"),
		StatusOfficial:             v.GetInt("year_retrieval.scoring.status_official"),
		StatusBootleg:              v.GetInt("year_retrieval.scoring.status_bootleg"),
		StatusPromo:                v.GetInt("year_retrieval.scoring.status_promo"),
		ReissuePenalty:             v.GetInt("year_retrieval.scoring.reissue_penalty"),
		ReleaseGroupFirstDateMatch: v.GetInt("year_retrieval.scoring.release_group_first_date_match"),
		YearBeforeStartMaxPenalty:  v.GetInt("year_retrieval.scoring.year_before_start_max_penalty"),
		YearBeforeStartGraceYears:  v.GetInt("year_retrieval.scoring.year_before_start_grace_years"),
		YearAfterEndMaxPenalty:     v.GetInt("year_retrieval.scoring.year_after_end_max_penalty"),
		YearAfterEndGraceYears:     v.GetInt("year_retrieval.scoring.year_after_end_grace_years"),
		YearNearStartBonus:         v.GetInt("year_retrieval.scoring.year_near_start_bonus"),
		YearDiffPerYearPenalty:     v.GetInt("year_retrieval.scoring.year_diff_per_year_penalty"),
		YearDiffMaxPenalty:         v.GetInt("year_retrieval.scoring.year_diff_max_penalty"),
		CountryArtistRegion:        v.GetInt("year_retrieval.scoring.country_artist_region"),
		CountryMajorMarket:         v.GetInt("year_retrieval.scoring.country_major_market"),
		SourceMusicBrainz:          v.GetInt("year_retrieval.scoring.source_musicbrainz"),
		SourceDiscogs:              v.GetInt("year_retrieval.scoring.source_discogs"),
		SourceITunes:               v.GetInt("year_retrieval.scoring.source_itunes"),
		SourceLastFM:               v.GetInt("year_retrieval.scoring.source_lastfm"),
		FutureYearPenalty:          v.GetInt("year_retrieval.scoring.future_year_penalty"),
		DefinitiveThreshold:        v.GetInt("year_retrieval.definitive_threshold"),
		MinValidYear:               v.GetInt("year_retrieval.min_valid_year"),
		RemasterKeywords:           v.GetStringSlice("year_retrieval.remaster_keywords"),
	}
}

var requiredKeys = []string{
	"caching.api_result_cache_path",
	"logs.directory",
}

func validateRequired(v *viper.Viper) error {
	var missing []string
	for _, key := range requiredKeys {
		if !v.IsSet(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

func validateRanges(cfg Config) error {
	if cfg.YearRetrieval.MinValidYear <= 0 {
		return fmt.Errorf("config: year_retrieval.min_valid_year must be positive, got %d", cfg.YearRetrieval.MinValidYear)
	}
	if cfg.YearRetrieval.ProcessingBatchSize <= 0 {
		return fmt.Errorf("config: year_retrieval.processing.batch_size must be positive, got %d", cfg.YearRetrieval.ProcessingBatchSize)
	}
	if cfg.AppleScriptTimeouts.DefaultSecond <= 0 {
		return fmt.Errorf("config: applescript_timeout_seconds must be positive, got %v", cfg.AppleScriptTimeouts.DefaultSecond)
	}
	if cfg.Experimental.MaxBatchSize <= 0 {
		return fmt.Errorf("config: experimental.max_batch_size must be positive, got %d", cfg.Experimental.MaxBatchSize)
	}
	return nil
}
