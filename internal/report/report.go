// Package report emits the on-disk change report (spec §6.3): a CSV file
// with one row per track field change, in a fixed column order, with a
// "no changes" summary short-circuit when every row is a no-op.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/barad1tos/reconciler/internal/model"
)

// Row is one change-report line: a single field change on a single track.
type Row struct {
	ChangeType model.ChangeType
	Artist     string
	Album      string
	TrackName  string
	OldGenre   string
	NewGenre   string
	OldYear    string
	NewYear    string
	OldName    string
	NewName    string
	Timestamp  time.Time
}

// IsNoOp reports whether this row changed nothing (old == new across every
// field it carries).
func (r Row) IsNoOp() bool {
	return r.OldGenre == r.NewGenre && r.OldYear == r.NewYear && r.OldName == r.NewName
}

var columns = []string{
	"change_type", "artist", "album", "track_name",
	"old_genre", "new_genre", "old_year", "new_year",
	"old_name", "new_name", "timestamp",
}

// Writer emits change-report rows as CSV in the fixed column order.
type Writer struct {
	csv *csv.Writer
}

// NewWriter wraps w with a csv.Writer and writes the header row.
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return nil, fmt.Errorf("report: write header: %w", err)
	}
	return &Writer{csv: cw}, nil
}

// WriteRows writes rows in order. If every row is a no-op, it writes a
// single "no changes" summary record instead of the individual rows.
func (rw *Writer) WriteRows(rows []Row) error {
	if allNoOp(rows) {
		return rw.writeSummary(len(rows))
	}
	for _, row := range rows {
		if err := rw.csv.Write(row.record()); err != nil {
			return fmt.Errorf("report: write row: %w", err)
		}
	}
	rw.csv.Flush()
	return rw.csv.Error()
}

func (rw *Writer) writeSummary(scanned int) error {
	summary := []string{
		"no_changes", "", "", "",
		"", "", "", "",
		"", "",
		fmt.Sprintf("scanned=%d", scanned),
	}
	if err := rw.csv.Write(summary); err != nil {
		return fmt.Errorf("report: write summary: %w", err)
	}
	rw.csv.Flush()
	return rw.csv.Error()
}

func allNoOp(rows []Row) bool {
	for _, row := range rows {
		if !row.IsNoOp() {
			return false
		}
	}
	return true
}

func (r Row) record() []string {
	return []string{
		r.ChangeType.String(),
		r.Artist,
		r.Album,
		r.TrackName,
		r.OldGenre,
		r.NewGenre,
		r.OldYear,
		r.NewYear,
		r.OldName,
		r.NewName,
		r.Timestamp.Format(time.RFC3339),
	}
}
