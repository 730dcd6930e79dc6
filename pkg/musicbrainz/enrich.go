package musicbrainz

import (
	"context"
	"log/slog"
)

// AlbumEnrichment holds metadata extracted from MusicBrainz for an album.
type AlbumEnrichment struct {
	ReleaseGroupMbid string
	AlbumType        string
	Label            string
	ReleaseDate      string
	Genres           []string
}

// EnrichAlbum searches MusicBrainz for a release group, picks the best match, and returns enrichment data.
func (c *Client) EnrichAlbum(ctx context.Context, title, artistName string) (*AlbumEnrichment, error) {
	searchResp, err := c.SearchReleaseGroup(ctx, title, artistName)
	if err != nil {
		return nil, err
	}
	if len(searchResp.ReleaseGroups) == 0 {
		slog.Debug("musicbrainz: no release group results", "title", title, "artist", artistName)
		return nil, nil
	}

	best := searchResp.ReleaseGroups[0]
	if best.Score < 85 {
		slog.Debug("musicbrainz: release group score too low", "title", title, "score", best.Score, "match", best.Title)
		return nil, nil
	}

	// Fetch full details with genres and releases (for label).
	detail, err := c.GetReleaseGroup(ctx, best.ID)
	if err != nil {
		slog.Warn("musicbrainz: failed to get release group detail", "mbid", best.ID, "err", err)
		detail = &best
	}

	enrichment := &AlbumEnrichment{
		ReleaseGroupMbid: detail.ID,
		AlbumType:        detail.PrimaryType,
		ReleaseDate:      detail.FirstRelease,
		Genres:           extractGenres(detail.Genres, detail.Tags),
	}

	// Extract label from the first release that has label info.
	for _, rel := range detail.Releases {
		for _, li := range rel.LabelInfo {
			if li.Label.Name != "" {
				enrichment.Label = li.Label.Name
				break
			}
		}
		if enrichment.Label != "" {
			break
		}
	}

	slog.Info("musicbrainz: enriched album", "title", title, "artist", artistName, "mbid", detail.ID, "genres", len(enrichment.Genres))
	return enrichment, nil
}

// extractGenres returns genre names from MusicBrainz genres and tags.
// Prefers curated genres; falls back to user-submitted tags with count > 0.
func extractGenres(genres []MBGenre, tags []MBTag) []string {
	if len(genres) > 0 {
		names := make([]string, 0, len(genres))
		for _, g := range genres {
			if g.Name != "" {
				names = append(names, g.Name)
			}
		}
		if len(names) > 0 {
			return names
		}
	}
	// Fall back to tags.
	names := make([]string, 0)
	for _, t := range tags {
		if t.Count > 0 && isGenreLike(t.Name) {
			names = append(names, t.Name)
		}
	}
	return names
}

// isGenreLike returns true if a tag name looks like a genre (lowercase, no special chars beyond hyphens/spaces).
func isGenreLike(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == ' ' {
			continue
		}
		return false
	}
	return true
}
