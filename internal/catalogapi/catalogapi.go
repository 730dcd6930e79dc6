// Package catalogapi defines the provider contract the year determinator
// fans out over (spec §6.2) and wraps concrete providers with a shared
// rate limiter and circuit breaker.
package catalogapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/sony/gobreaker"

	"github.com/barad1tos/reconciler/internal/scorer"
)

// ErrProviderUnavailable is returned when a provider's circuit breaker is
// open and the call is rejected without reaching the network.
var ErrProviderUnavailable = errors.New("catalogapi: provider unavailable (circuit open)")

// Release is a raw candidate release surfaced by a provider, which feeds
// the scorer after being mapped to a scorer.Candidate.
type Release struct {
	Title                 string
	Artist                string
	Year                  string
	Type                  string
	Status                string
	Country               string
	Genre                 string
	Source                string
	ReleaseGroupFirstDate string
	IsReissue             bool
}

// ToCandidate maps a raw provider release into a scorer.Candidate.
func (r Release) ToCandidate() scorer.Candidate {
	return scorer.Candidate{
		Title:                 r.Title,
		Artist:                r.Artist,
		Year:                  r.Year,
		Type:                  r.Type,
		Status:                r.Status,
		Country:               r.Country,
		Genre:                 r.Genre,
		Source:                r.Source,
		ReleaseGroupFirstDate: r.ReleaseGroupFirstDate,
		IsReissue:             r.IsReissue,
	}
}

// Provider is one catalog API source (MusicBrainz-class, Discogs-class,
// iTunes-class, Last.fm-class). Implementations perform their own network
// I/O; GetAlbumYear additionally surfaces a best-effort hint the caller may
// use before full scoring runs.
type Provider interface {
	// Name identifies the provider for source-tagging and priority
	// ordering, e.g. "musicbrainz".
	Name() string
	// GetAlbumYear returns a best-guess year, whether the provider itself
	// considers it definitive, and a coarse confidence hint in [0,100].
	GetAlbumYear(ctx context.Context, artist, album, existingYear string) (year string, definitive bool, scoreHint int, err error)
	// SearchReleases returns every raw candidate release the provider
	// knows about for (artist, album), to be scored by internal/scorer.
	SearchReleases(ctx context.Context, artist, album string) ([]Release, error)
}

// GuardedProvider wraps a Provider with a token-bucket rate limiter and a
// circuit breaker, so one misbehaving source can't stall or flood the
// others during API fan-out.
type GuardedProvider struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedProvider wraps inner with a limiter allowing ratePerSecond
// requests per second (burst of int(ratePerSecond)+1) and a circuit breaker that
// opens after consecutiveFailures in a row.
func NewGuardedProvider(inner Provider, ratePerSecond float64, consecutiveFailures uint32) *GuardedProvider {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
	})
	return &GuardedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)+1),
		breaker: breaker,
	}
}

func (g *GuardedProvider) Name() string { return g.inner.Name() }

func (g *GuardedProvider) GetAlbumYear(ctx context.Context, artist, album, existingYear string) (string, bool, int, error) {
	type result struct {
		year       string
		definitive bool
		scoreHint  int
	}
	r, err := g.breaker.Execute(func() (any, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		year, definitive, hint, err := g.inner.GetAlbumYear(ctx, artist, album, existingYear)
		if err != nil {
			return nil, err
		}
		return result{year, definitive, hint}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", false, 0, fmt.Errorf("%s: %w", g.inner.Name(), ErrProviderUnavailable)
		}
		return "", false, 0, err
	}
	res := r.(result)
	return res.year, res.definitive, res.scoreHint, nil
}

func (g *GuardedProvider) SearchReleases(ctx context.Context, artist, album string) ([]Release, error) {
	r, err := g.breaker.Execute(func() (any, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return g.inner.SearchReleases(ctx, artist, album)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", g.inner.Name(), ErrProviderUnavailable)
		}
		return nil, err
	}
	return r.([]Release), nil
}
