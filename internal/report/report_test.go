package report_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barad1tos/reconciler/internal/model"
	"github.com/barad1tos/reconciler/internal/report"
)

func TestWriterEmitsRowsInFixedColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	w, err := report.NewWriter(&buf)
	require.NoError(t, err)

	rows := []report.Row{
		{
			ChangeType: model.ChangeYear,
			Artist:     "Boards of Canada",
			Album:      "Music Has the Right to Children",
			TrackName:  "Roygbiv",
			OldYear:    "0",
			NewYear:    "1998",
			Timestamp:  time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, w.WriteRows(rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{
		"change_type", "artist", "album", "track_name",
		"old_genre", "new_genre", "old_year", "new_year",
		"old_name", "new_name", "timestamp",
	}, records[0])
	assert.Equal(t, "year", records[1][0])
	assert.Equal(t, "1998", records[1][7])
}

func TestWriterEmitsNoChangesSummaryWhenAllRowsAreNoOps(t *testing.T) {
	var buf bytes.Buffer
	w, err := report.NewWriter(&buf)
	require.NoError(t, err)

	rows := []report.Row{
		{ChangeType: model.ChangeGenre, OldGenre: "Electronic", NewGenre: "Electronic"},
		{ChangeType: model.ChangeYear, OldYear: "1998", NewYear: "1998"},
	}
	require.NoError(t, w.WriteRows(rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "no_changes", records[1][0])
	assert.Equal(t, "scanned=2", records[1][10])
}

func TestRunSummaryString(t *testing.T) {
	s := report.RunSummary{Processed: 10, Updated: 3, Errors: 1}
	assert.Contains(t, s.String(), "processed=10")
	assert.Contains(t, s.String(), "updated=3")
	assert.Contains(t, s.String(), "errors=1")
}
