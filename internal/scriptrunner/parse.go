package scriptrunner

import "strings"

// UpdateOutcome is the three-way result update_property.applescript (or an
// equivalent) can report for a single field write.
type UpdateOutcome int

const (
	OutcomeError UpdateOutcome = iota
	OutcomeSuccess
	OutcomeNoChange
)

// ParseUpdateOutcome classifies one script's stdout per §4.10 step 4: a
// "Success: " prefix is a real change, "No Change: " means the value was
// already equal, anything else is an error.
func ParseUpdateOutcome(stdout string) UpdateOutcome {
	trimmed := strings.TrimSpace(stdout)
	switch {
	case strings.HasPrefix(trimmed, "Success:") || trimmed == "Success":
		return OutcomeSuccess
	case strings.HasPrefix(trimmed, "No Change:") || trimmed == "No Change":
		return OutcomeNoChange
	default:
		return OutcomeError
	}
}

// TrackRecord is one parsed track record from a fetch script's stdout.
type TrackRecord struct {
	ID           string
	Name         string
	Artist       string
	AlbumArtist  string
	Album        string
	Genre        string
	DateAdded    string
	TrackStatus  string
	Year         string
	ReleaseYear  string
	YearSetByMGU string
	HasMGUField  bool
}

// ParseTrackRecords splits a fetch script's stdout into individual track
// records (RecordSeparator-joined), each further split into fields
// (FieldSeparator-joined). Both the 11-field and legacy 10-field (pre-
// year_set_by_mgu) forms are accepted.
func ParseTrackRecords(stdout string) []TrackRecord {
	if stdout == "" {
		return nil
	}
	rawRecords := strings.Split(stdout, RecordSeparator)
	records := make([]TrackRecord, 0, len(rawRecords))
	for _, raw := range rawRecords {
		if raw == "" {
			continue
		}
		fields := strings.Split(raw, FieldSeparator)
		if len(fields) < 10 {
			continue
		}
		rec := TrackRecord{
			ID:          fields[0],
			Name:        fields[1],
			Artist:      fields[2],
			AlbumArtist: fields[3],
			Album:       fields[4],
			Genre:       fields[5],
			DateAdded:   fields[6],
			TrackStatus: fields[7],
			Year:        fields[8],
			ReleaseYear: fields[9],
		}
		if len(fields) >= 11 {
			rec.YearSetByMGU = fields[10]
			rec.HasMGUField = true
		}
		records = append(records, rec)
	}
	return records
}
