package scan_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barad1tos/reconciler/internal/scan"
)

func TestWalkSkipsNonAudioFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("not audio"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte{0xFF, 0xD8, 0xFF}, 0o644))

	records, err := scan.Walk(dir, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWalkToleratesUntaggedAudioFile(t *testing.T) {
	dir := t.TempDir()
	// No real ID3/FLAC header — tag.ReadFrom can't recognize the format, but
	// scan still records the file's filesystem attributes. The payload is
	// longer than the 128-byte ID3v1 trailer the tag reader probes, so it
	// reports tag.ErrNoTagsFound rather than a short-read error.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "track.mp3"), []byte(strings.Repeat("not a real mp3 payload ", 8)), 0o644))

	var failed []string
	records, err := scan.Walk(dir, func(path string, err error) {
		failed = append(failed, path)
	})
	require.NoError(t, err)
	if assert.Len(t, records, 1) {
		assert.NotEmpty(t, records[0].Track.PersistentID)
		assert.NotEmpty(t, records[0].Track.Location)
		assert.NotZero(t, records[0].Track.FileSize)
	}
	assert.Empty(t, failed)
}

func TestWalkRecursesIntoSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "Artist", "Album")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "01 track.flac"), []byte(strings.Repeat("not a real flac payload ", 8)), 0o644))

	records, err := scan.Walk(dir, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPersistentIDIsStableForSameFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mp3")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("payload ", 20)), 0o644))

	records1, err := scan.Walk(dir, nil)
	require.NoError(t, err)
	records2, err := scan.Walk(dir, nil)
	require.NoError(t, err)

	require.Len(t, records1, 1)
	require.Len(t, records2, 1)
	assert.Equal(t, records1[0].Track.PersistentID, records2[0].Track.PersistentID)
}
