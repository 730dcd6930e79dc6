package musicbrainz

import (
	"context"
	"fmt"

	"github.com/barad1tos/reconciler/internal/catalogapi"
)

// Provider adapts Client into a catalogapi.Provider. Where the original
// client made its own accept/reject calls against fixed 90/85/80 search
// scores, Provider instead surfaces every candidate it finds and leaves the
// accept decision to the shared scorer (internal/scorer), so all catalog
// sources are judged by one consistent rule.
type Provider struct {
	client *Client
}

// NewProvider wraps client as a catalogapi.Provider.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string { return "musicbrainz" }

// GetAlbumYear returns the first-release year of the best-scoring release
// group MusicBrainz finds for (artist, album). It never claims definitive
// itself; that judgment belongs to the scorer/year-determinator pipeline.
func (p *Provider) GetAlbumYear(ctx context.Context, artist, album, existingYear string) (string, bool, int, error) {
	enrichment, err := p.client.EnrichAlbum(ctx, album, artist)
	if err != nil {
		return "", false, 0, fmt.Errorf("musicbrainz provider: %w", err)
	}
	if enrichment == nil || len(enrichment.ReleaseDate) < 4 {
		return "", false, 0, nil
	}
	return enrichment.ReleaseDate[:4], false, 0, nil
}

// SearchReleases returns every release group MusicBrainz's release-group
// search surfaces for (artist, album), mapped into scorer-ready candidates.
func (p *Provider) SearchReleases(ctx context.Context, artist, album string) ([]catalogapi.Release, error) {
	resp, err := p.client.SearchReleaseGroup(ctx, album, artist)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz provider: %w", err)
	}

	releases := make([]catalogapi.Release, 0, len(resp.ReleaseGroups))
	for _, rg := range resp.ReleaseGroups {
		if len(rg.FirstRelease) < 4 {
			continue
		}
		releases = append(releases, catalogapi.Release{
			Title:                 rg.Title,
			Artist:                artist,
			Year:                  rg.FirstRelease[:4],
			Type:                  rg.PrimaryType,
			Status:                "official",
			Genre:                 genreString(rg.Genres),
			Source:                "musicbrainz",
			ReleaseGroupFirstDate: rg.FirstRelease[:4],
		})
	}
	return releases, nil
}

func genreString(genres []MBGenre) string {
	if len(genres) == 0 {
		return ""
	}
	return genres[0].Name
}
