package scorer

import (
	"log/slog"
	"strings"
	"time"
)

// Candidate is one release answer from a catalog API (spec §6.2), feeding
// the scorer.
type Candidate struct {
	Title                 string
	Artist                string
	Year                  string
	Type                  string // album | ep | single | compilation | live | soundtrack | remix
	Status                string // official | bootleg | unofficial | pseudo | promo
	Country               string
	Genre                 string
	Source                string // musicbrainz | discogs | itunes | lastfm
	ReleaseGroupFirstDate string // year, only meaningful for musicbrainz-class sources
	IsReissue             bool
}

// ActivityPeriod is the artist's known active-years context, used for the
// contextual (before-start / after-end) scoring component. Either bound
// may be absent.
type ActivityPeriod struct {
	StartYear *int
	EndYear   *int
	Region    string // ISO-ish country code the artist is associated with, e.g. "gb"
}

// soundtrackArtistMarkers are target-artist strings that mark a
// compilation/soundtrack release rather than a performing artist.
var soundtrackArtistMarkers = []string{
	"various artists", "various", "ost", "soundtrack",
	"original motion picture soundtrack", "original soundtrack",
}

var soundtrackGenreMarkers = []string{"soundtrack", "score", "film music", "ost"}

// majorMarketCountries is the §4.8 "major markets" set; uk folds into gb.
var majorMarketCountries = map[string]bool{
	"us": true, "gb": true, "de": true, "jp": true, "fr": true,
}

func foldCountry(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "uk" {
		return "gb"
	}
	return c
}

func isSoundtrackArtist(artist string) bool {
	n := Normalize(artist)
	for _, marker := range soundtrackArtistMarkers {
		m := Normalize(marker)
		if m == "ost" {
			// "ost" is only a soundtrack marker as a whole word: a bare
			// substring match would also fire on "Ghost" or "Frost".
			continue
		}
		if n == m || strings.Contains(n, m) || strings.HasPrefix(n, m) {
			return true
		}
	}
	for _, word := range strings.Fields(n) {
		if word == "ost" {
			return true
		}
	}
	return false
}

// Score computes the integer score for candidate against the search
// (targetArtist, targetAlbum), given the artist's activity period and the
// current year (for future-year detection). It implements spec §4.8 in the
// precedence order the Python original (year_scoring.py) uses. logger may be
// nil; scores above weights.DefinitiveThreshold-20 get a component-by-
// component debug log when a logger is supplied.
func Score(weights Weights, candidate Candidate, targetArtist, targetAlbum string, period ActivityPeriod, now time.Time, logger *slog.Logger) int {
	if !IsValidYear(candidate.Year, weights.MinValidYear) {
		return 0
	}
	candidateYear, _ := ParseYear(candidate.Year, weights.MinValidYear)

	base := weights.Base
	artistComponent, artistExactMatch := scoreArtist(weights, candidate.Artist, targetArtist)

	soundtrackComponent := 0
	if isSoundtrackArtist(targetArtist) &&
		albumSubstringMatches(candidate.Title, targetAlbum, weights.RemasterKeywords) &&
		genreConfirmsSoundtrack(candidate.Genre) {
		soundtrackComponent = weights.SoundtrackCompensation
	}

	albumComponent := scoreAlbum(weights, candidate.Title, targetAlbum, artistExactMatch)
	typeComponent := scoreReleaseType(weights, candidate.Type)
	statusComponent := scoreReleaseStatus(weights, candidate.Status)

	reissueComponent := 0
	if candidate.IsReissue {
		reissueComponent = weights.ReissuePenalty
	}

	rgDateComponent := 0
	if strings.EqualFold(candidate.Source, "musicbrainz") && candidate.ReleaseGroupFirstDate != "" {
		if rgYear, err := ParseYear(candidate.ReleaseGroupFirstDate, weights.MinValidYear); err == nil && rgYear == candidateYear {
			rgDateComponent = weights.ReleaseGroupFirstDateMatch
		}
	}

	periodComponent := scoreArtistPeriod(weights, candidateYear, period)
	yearDiffComponent := scoreYearDiffFromReleaseGroup(weights, candidate, candidateYear)
	countryComponent := scoreCountry(weights, candidate.Country, period)
	sourceComponent := scoreSource(weights, candidate.Source)

	futureComponent := 0
	if candidateYear > now.Year() {
		futureComponent = -weights.FutureYearPenalty
	}

	score := base + artistComponent + soundtrackComponent + albumComponent + typeComponent +
		statusComponent + reissueComponent + rgDateComponent + periodComponent +
		yearDiffComponent + countryComponent + sourceComponent + futureComponent

	if score < 0 {
		score = 0
	}

	if logger != nil && score > weights.DefinitiveThreshold-20 {
		logger.Debug("release score components",
			"candidate_title", candidate.Title,
			"candidate_artist", candidate.Artist,
			"target_artist", targetArtist,
			"target_album", targetAlbum,
			"base", base,
			"artist", artistComponent,
			"soundtrack", soundtrackComponent,
			"album", albumComponent,
			"type", typeComponent,
			"status", statusComponent,
			"reissue", reissueComponent,
			"release_group_date", rgDateComponent,
			"artist_period", periodComponent,
			"year_diff", yearDiffComponent,
			"country", countryComponent,
			"source", sourceComponent,
			"future_year", futureComponent,
			"total", score,
		)
	}

	return score
}

func scoreArtist(weights Weights, candidateArtist, targetArtist string) (component int, exactMatch bool) {
	nc := Normalize(candidateArtist)
	nt := Normalize(targetArtist)

	switch {
	case nc == nt:
		return weights.ArtistExact, true
	case strings.Contains(nc, nt) || strings.Contains(nt, nc):
		return weights.ArtistSubstring, false
	case IsCrossScriptComparison(candidateArtist, targetArtist):
		return weights.ArtistCrossScript, false
	default:
		return weights.ArtistMismatch, false
	}
}

func albumSubstringMatches(candidateTitle, targetAlbum string, keywords []string) bool {
	nc := Normalize(StripEditionSuffix(candidateTitle, keywords))
	nt := Normalize(StripEditionSuffix(targetAlbum, keywords))
	return strings.Contains(nc, nt) || strings.Contains(nt, nc)
}

func genreConfirmsSoundtrack(genre string) bool {
	ng := strings.ToLower(genre)
	for _, marker := range soundtrackGenreMarkers {
		if strings.Contains(ng, marker) {
			return true
		}
	}
	return false
}

// isAlbumVariation recognizes "Title (Something)"-style bracketed
// variation suffixes once edition keywords have already been stripped.
func isAlbumVariation(candidateTitle, targetAlbum string) bool {
	strippedCandidate := strings.TrimSpace(editionSuffixRegexp.ReplaceAllString(candidateTitle, ""))
	strippedTarget := strings.TrimSpace(editionSuffixRegexp.ReplaceAllString(targetAlbum, ""))
	return Normalize(strippedCandidate) == Normalize(strippedTarget) && strippedCandidate != candidateTitle
}

func scoreAlbum(weights Weights, candidateTitle, targetAlbum string, artistExactMatch bool) int {
	strippedCandidate := StripEditionSuffix(candidateTitle, weights.RemasterKeywords)
	strippedTarget := StripEditionSuffix(targetAlbum, weights.RemasterKeywords)
	nc := Normalize(strippedCandidate)
	nt := Normalize(strippedTarget)

	if nc == nt {
		score := weights.AlbumExact
		if artistExactMatch {
			score += weights.PerfectBonus
		}
		return score
	}
	if isAlbumVariation(candidateTitle, targetAlbum) {
		return weights.AlbumVariation
	}
	if strings.Contains(nc, nt) || strings.Contains(nt, nc) {
		return weights.AlbumSubstringMismatch
	}
	return weights.AlbumUnrelated
}

func scoreReleaseType(weights Weights, releaseType string) int {
	switch strings.ToLower(releaseType) {
	case "album":
		return weights.TypeAlbum
	case "ep", "single":
		return weights.TypeEPSingle
	case "compilation", "live", "soundtrack", "remix":
		return weights.TypeCompilation
	default:
		return 0
	}
}

func scoreReleaseStatus(weights Weights, status string) int {
	switch strings.ToLower(status) {
	case "official":
		return weights.StatusOfficial
	case "bootleg", "unofficial", "pseudo-release", "pseudo":
		return weights.StatusBootleg
	case "promotion", "promo":
		return weights.StatusPromo
	default:
		return 0
	}
}

func scoreArtistPeriod(weights Weights, year int, period ActivityPeriod) int {
	score := 0
	if period.StartYear != nil {
		start := *period.StartYear
		if year < start-weights.YearBeforeStartGraceYears {
			yearsBefore := start - year
			penalty := min(weights.YearBeforeStartMaxPenalty, 5+(yearsBefore-1)*5)
			score -= penalty
		} else if year >= start && year-start <= 1 {
			score += weights.YearNearStartBonus
		}
	}
	if period.EndYear != nil {
		end := *period.EndYear
		if year > end+weights.YearAfterEndGraceYears {
			yearsAfter := year - end
			penalty := min(weights.YearAfterEndMaxPenalty, 5+(yearsAfter-3)*3)
			score -= penalty
		}
	}
	return score
}

func scoreYearDiffFromReleaseGroup(weights Weights, candidate Candidate, candidateYear int) int {
	if candidate.ReleaseGroupFirstDate == "" {
		return 0
	}
	rgYear, err := ParseYear(candidate.ReleaseGroupFirstDate, weights.MinValidYear)
	if err != nil {
		return 0
	}
	diff := candidateYear - rgYear
	if diff <= 1 {
		return 0
	}
	penalty := min(weights.YearDiffMaxPenalty, (diff-1)*weights.YearDiffPerYearPenalty)
	return -penalty
}

func scoreCountry(weights Weights, country string, period ActivityPeriod) int {
	c := foldCountry(country)
	if c == "" {
		return 0
	}
	score := 0
	if region := foldCountry(period.Region); region != "" && region == c {
		score += weights.CountryArtistRegion
	}
	if majorMarketCountries[c] {
		score += weights.CountryMajorMarket
	}
	return score
}

func scoreSource(weights Weights, source string) int {
	switch strings.ToLower(source) {
	case "musicbrainz":
		return weights.SourceMusicBrainz
	case "discogs":
		return weights.SourceDiscogs
	case "itunes":
		return weights.SourceITunes
	case "lastfm":
		return weights.SourceLastFM
	default:
		return 0
	}
}
