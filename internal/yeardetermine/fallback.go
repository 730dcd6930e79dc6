package yeardetermine

import (
	"sort"
	"strconv"

	"github.com/barad1tos/reconciler/internal/model"
	"github.com/barad1tos/reconciler/internal/scorer"
)

// Fallback tunables resolved for the "dominant year" heuristic (§12
// supplement, not present in the distilled spec but restored from the
// original's album year resolution logic). When no API candidate scores
// above zero, rather than immediately giving up the determinator looks at
// what year the album's own tracks already agree on.
const (
	fallbackParityThreshold   = 2
	fallbackDominanceMinShare = 0.6
)

// DominantYear looks at the valid years already present across an album's
// tracks and returns one if a clear majority agrees. It never invents a
// year that isn't already attested by at least one track.
//
// Rule: count occurrences of each valid year; the most common year wins
// only when it both appears at least fallbackParityThreshold times and
// accounts for at least fallbackDominanceMinShare of tracks with a valid
// year. Ties are broken by earliest year. Returns ok=false when no year
// clears the bar (e.g. every track has a distinct year).
func DominantYear(tracks []model.Track, minValidYear int) (year string, ok bool) {
	counts := map[string]int{}
	total := 0
	for _, t := range tracks {
		if !scorer.IsValidYear(t.Year, minValidYear) {
			continue
		}
		counts[t.Year]++
		total++
	}
	if total == 0 {
		return "", false
	}

	type tally struct {
		year  string
		count int
	}
	tallies := make([]tally, 0, len(counts))
	for y, c := range counts {
		tallies = append(tallies, tally{y, c})
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].count != tallies[j].count {
			return tallies[i].count > tallies[j].count
		}
		yi, _ := strconv.Atoi(tallies[i].year)
		yj, _ := strconv.Atoi(tallies[j].year)
		return yi < yj
	})

	top := tallies[0]
	share := float64(top.count) / float64(total)
	if top.count >= fallbackParityThreshold && share >= fallbackDominanceMinShare {
		return top.year, true
	}
	return "", false
}
