// Package scan walks a library directory, reads each audio file's tags and
// filesystem attributes, and produces the model.Track and
// fingerprint.Attrs values the rest of the pipeline operates on.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"

	"github.com/barad1tos/reconciler/internal/fingerprint"
	"github.com/barad1tos/reconciler/internal/model"
)

// audioExtensions restricts the walk to files the tag library can read.
var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".m4a":  {},
	".flac": {},
	".ogg":  {},
	".oga":  {},
	".dsf":  {},
	".aiff": {},
	".aif":  {},
	".wav":  {},
}

// FileRecord is one scanned track: its tag-derived metadata plus the
// fingerprint attribute bag built from its filesystem state.
type FileRecord struct {
	Track       model.Track
	Fingerprint fingerprint.Attrs
}

// Walk scans libraryDir recursively, reading tags from every recognized
// audio file. It does not fail the whole scan when a single file can't be
// read — that failure is returned via onError instead, so the caller can
// log it and keep going, matching the per-item-isolated error policy the
// rest of the pipeline follows. onError may be nil.
func Walk(libraryDir string, onError func(path string, err error)) ([]FileRecord, error) {
	var records []FileRecord

	err := filepath.WalkDir(libraryDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := audioExtensions[ext]; !ok {
			return nil
		}

		record, readErr := readFile(path)
		if readErr != nil {
			if onError != nil {
				onError(path, readErr)
			}
			return nil
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: walk %s: %w", libraryDir, err)
	}
	return records, nil
}

func readFile(path string) (FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileRecord{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileRecord{}, err
	}

	meta, err := tag.ReadFrom(f)
	if err != nil && !errors.Is(err, tag.ErrNoTagsFound) {
		return FileRecord{}, fmt.Errorf("read tags: %w", err)
	}

	track := model.Track{
		Location:     path,
		FileSize:     float64(info.Size()),
		DateModified: info.ModTime().UTC().Format("2006-01-02 15:04:05"),
	}

	if meta != nil {
		track.Name = meta.Title()
		track.Artist = coalesce(meta.Artist(), meta.AlbumArtist())
		track.AlbumArtist = coalesce(meta.AlbumArtist(), meta.Artist())
		track.Album = meta.Album()
		track.Genre = meta.Genre()
		if year := meta.Year(); year > 0 {
			track.Year = strconv.Itoa(year)
		}
	}

	track.PersistentID = persistentID(path, info)
	track.ID = track.PersistentID
	track.Status = model.StatusEditable

	attrs := fingerprint.Attrs{
		"persistent_id": track.PersistentID,
		"location":      track.Location,
		"file_size":     track.FileSize,
		"date_modified": track.DateModified,
	}

	return FileRecord{Track: track, Fingerprint: attrs}, nil
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
