// Package scorer implements the release-scoring function that ranks
// candidate releases from heterogeneous catalog sources (spec §4.8).
package scorer

// Weights holds every configurable scoring weight from spec §4.8 and
// §6.4's "year_retrieval.scoring.*" contract. Field names mirror the
// Python original's _get_default_scoring_config() keys so config files
// written for that tool map over directly.
type Weights struct {
	Base int

	ArtistExact     int
	ArtistSubstring int
	ArtistCrossScript int
	ArtistMismatch  int

	SoundtrackCompensation int

	AlbumExact             int
	PerfectBonus           int
	AlbumVariation         int
	AlbumSubstringMismatch int
	AlbumUnrelated         int

	TypeAlbum       int
	TypeEPSingle    int
	TypeCompilation int

	StatusOfficial int
	StatusBootleg  int
	StatusPromo    int

	ReissuePenalty int

	ReleaseGroupFirstDateMatch int

	YearBeforeStartMaxPenalty int
	YearBeforeStartGraceYears int
	YearAfterEndMaxPenalty    int
	YearAfterEndGraceYears    int
	YearNearStartBonus        int

	YearDiffPerYearPenalty int
	YearDiffMaxPenalty     int

	CountryArtistRegion int
	CountryMajorMarket  int

	SourceMusicBrainz int
	SourceDiscogs     int
	SourceITunes      int
	SourceLastFM      int

	FutureYearPenalty int

	DefinitiveThreshold int
	MinValidYear        int

	RemasterKeywords []string
}

// DefaultWeights mirrors the Python original's
// _get_default_scoring_config() exactly.
func DefaultWeights() Weights {
	return Weights{
		Base: 10,

		ArtistExact:       20,
		ArtistSubstring:    -20,
		ArtistCrossScript: -10,
		ArtistMismatch:    -60,

		SoundtrackCompensation: 75,

		AlbumExact:             25,
		PerfectBonus:           10,
		AlbumVariation:         10,
		AlbumSubstringMismatch: -15,
		AlbumUnrelated:         -40,

		TypeAlbum:       15,
		TypeEPSingle:    -10,
		TypeCompilation: -25,

		StatusOfficial: 10,
		StatusBootleg:  -50,
		StatusPromo:    -20,

		ReissuePenalty: -30,

		ReleaseGroupFirstDateMatch: 50,

		YearBeforeStartMaxPenalty: 50,
		YearBeforeStartGraceYears: 1,
		YearAfterEndMaxPenalty:    40,
		YearAfterEndGraceYears:    3,
		YearNearStartBonus:        20,

		YearDiffPerYearPenalty: 5,
		YearDiffMaxPenalty:     40,

		CountryArtistRegion: 10,
		CountryMajorMarket:  5,

		SourceMusicBrainz: 5,
		SourceDiscogs:     2,
		SourceITunes:      4,
		SourceLastFM:      -5,

		FutureYearPenalty: 10,

		DefinitiveThreshold: 85,
		MinValidYear:        1900,

		RemasterKeywords: []string{
			"deluxe", "remaster", "remastered", "anniversary", "edition",
			"version", "bonus", "special", "collector",
		},
	}
}
