package runfilter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/barad1tos/reconciler/internal/model"
	"github.com/barad1tos/reconciler/internal/runfilter"
)

func track(id, artist string) model.Track {
	return model.Track{ID: id, Artist: artist}
}

func TestNeedsProcessingNewTrackHasNoPriorState(t *testing.T) {
	f := runfilter.New(map[string]runfilter.ScanState{}, nil)
	assert.True(t, f.NeedsProcessing(track("t1", "Boards of Canada"), runfilter.ScanState{MtimeUnix: 100, FileSize: 10}))
}

func TestNeedsProcessingUnchangedTrackIsSkipped(t *testing.T) {
	lastScan := map[string]runfilter.ScanState{"t1": {MtimeUnix: 100, FileSize: 10}}
	f := runfilter.New(lastScan, nil)
	assert.False(t, f.NeedsProcessing(track("t1", "Boards of Canada"), runfilter.ScanState{MtimeUnix: 100, FileSize: 10}))
}

func TestNeedsProcessingChangedMtimeReprocesses(t *testing.T) {
	lastScan := map[string]runfilter.ScanState{"t1": {MtimeUnix: 100, FileSize: 10}}
	f := runfilter.New(lastScan, nil)
	assert.True(t, f.NeedsProcessing(track("t1", "Boards of Canada"), runfilter.ScanState{MtimeUnix: 200, FileSize: 10}))
}

func TestNeedsProcessingNilLastScanAlwaysTrue(t *testing.T) {
	f := runfilter.New(nil, nil)
	assert.True(t, f.NeedsProcessing(track("t1", "Anyone"), runfilter.ScanState{}))
}

func TestTestArtistFilterIsCaseInsensitiveAllowlist(t *testing.T) {
	f := runfilter.New(nil, []string{"Boards of Canada"})
	assert.True(t, f.NeedsProcessing(track("t1", "boards of canada"), runfilter.ScanState{}))
	assert.False(t, f.NeedsProcessing(track("t2", "Aphex Twin"), runfilter.ScanState{}))
}

func TestApplyFiltersDownToProcessableTracks(t *testing.T) {
	lastScan := map[string]runfilter.ScanState{"t1": {MtimeUnix: 100, FileSize: 10}}
	f := runfilter.New(lastScan, nil)
	tracks := []model.Track{track("t1", "A"), track("t2", "B")}
	current := map[string]runfilter.ScanState{
		"t1": {MtimeUnix: 100, FileSize: 10},
		"t2": {MtimeUnix: 5, FileSize: 5},
	}
	result := f.Apply(tracks, current)
	if assert.Len(t, result, 1) {
		assert.Equal(t, "t2", result[0].ID)
	}
}
