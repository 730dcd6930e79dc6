package yeardetermine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/barad1tos/reconciler/internal/model"
	"github.com/barad1tos/reconciler/internal/yeardetermine"
)

func tracksWithYears(years ...string) []model.Track {
	tracks := make([]model.Track, len(years))
	for i, y := range years {
		tracks[i] = model.Track{ID: string(rune('a' + i)), Year: y}
	}
	return tracks
}

func TestDominantYearMajorityWins(t *testing.T) {
	tracks := tracksWithYears("2000", "2000", "2000", "2000", "1999")
	year, ok := yeardetermine.DominantYear(tracks, 1900)
	assert.True(t, ok)
	assert.Equal(t, "2000", year)
}

func TestDominantYearParityLeadWins(t *testing.T) {
	tracks := tracksWithYears("2000", "2000", "2000", "1999")
	year, ok := yeardetermine.DominantYear(tracks, 1900)
	assert.True(t, ok)
	assert.Equal(t, "2000", year)
}

func TestDominantYearSingleValidYearFailsParityThreshold(t *testing.T) {
	// A single attested year never reaches the fallbackParityThreshold vote
	// count on its own, so it cannot be dominant regardless of share.
	tracks := tracksWithYears("1999")
	_, ok := yeardetermine.DominantYear(tracks, 1900)
	assert.False(t, ok)
}

func TestDominantYearParityCountWithoutShareFails(t *testing.T) {
	// count(y) >= parity_threshold AND count(y)/total >= dominance_min_share
	// are both required: top count 3 out of 7 is only 0.43 share, so it
	// stays pending even though it's the clear plurality.
	tracks := tracksWithYears("2000", "2000", "2000", "2001", "2002", "2003", "2004")
	_, ok := yeardetermine.DominantYear(tracks, 1900)
	assert.False(t, ok)
}

func TestDominantYearTwoWayTieIsNotDominant(t *testing.T) {
	// Each year has one vote and a 50% share: neither reaches the 2-vote
	// parity count nor the 60% share bar, so a plain 1-1 split across only
	// two tracks stays ambiguous.
	tracks := tracksWithYears("2000", "1999")
	_, ok := yeardetermine.DominantYear(tracks, 1900)
	assert.False(t, ok)
}

func TestDominantYearLeaderWinsOverTiedRunnersUp(t *testing.T) {
	// Leader "2005" has 3 of 5 votes (count 3, share 0.6), clearing both
	// bars; runner-ups "2001" and "2003" are tied at 1 each, which does not
	// affect the result.
	tracks := tracksWithYears("2005", "2005", "2005", "2001", "2003")
	year, ok := yeardetermine.DominantYear(tracks, 1900)
	assert.True(t, ok)
	assert.Equal(t, "2005", year)
}

func TestDominantYearNoValidYearsFails(t *testing.T) {
	tracks := tracksWithYears("", "", "")
	_, ok := yeardetermine.DominantYear(tracks, 1900)
	assert.False(t, ok)
}

func TestDominantYearEvenSplitAcrossManyFails(t *testing.T) {
	tracks := tracksWithYears("2000", "2001", "2002", "2003")
	_, ok := yeardetermine.DominantYear(tracks, 1900)
	assert.False(t, ok)
}
