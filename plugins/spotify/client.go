package spotify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

const (
	playlistPageSize = 100
	albumPageSize    = 50
)

// Client wraps the Spotify Web API under the client-credentials flow.
// Spotify is catalog-only: it contributes clean metadata and playlist
// expansion, never audio.
type Client struct {
	creds  *clientcredentials.Config
	logger bot.Logger

	mu     sync.Mutex
	client *spotify.Client
	expiry time.Time
}

func New(clientID, clientSecret string, logger bot.Logger) *Client {
	return &Client{
		creds: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyauth.TokenURL,
		},
		logger: logger,
	}
}

// api returns an authenticated client, refreshing the app token when it
// is about to expire.
func (c *Client) api(ctx context.Context) (*spotify.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && time.Now().Before(c.expiry.Add(-time.Minute)) {
		return c.client, nil
	}

	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("spotify token: %w", err)
	}
	c.client = spotify.New(spotifyauth.New().Client(ctx, token))
	c.expiry = token.Expiry
	return c.client, nil
}

// Search returns track descriptors for the query, best match first.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error) {
	if limit <= 0 {
		limit = 5
	}

	api, err := c.api(ctx)
	if err != nil {
		return nil, platform.NewProviderError("spotify", "search", query, err)
	}

	results, err := api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, platform.NewProviderError("spotify", "search", query, err)
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, platform.NewProviderError("spotify", "search", query, platform.ErrNotFound)
	}

	descs := make([]bot.TrackDescriptor, 0, len(results.Tracks.Tracks))
	for i := range results.Tracks.Tracks {
		descs = append(descs, convertTrack(&results.Tracks.Tracks[i]))
		if len(descs) >= limit {
			break
		}
	}
	return descs, nil
}

// GetTrack resolves a single track ID into a descriptor.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*bot.TrackDescriptor, error) {
	api, err := c.api(ctx)
	if err != nil {
		return nil, platform.NewProviderError("spotify", "track", trackID, err)
	}

	track, err := api.GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		return nil, platform.NewProviderError("spotify", "track", trackID, err)
	}
	desc := convertTrack(track)
	return &desc, nil
}

// ExpandPlaylist fetches all playlist items. The first page reveals the
// total; the remaining pages are fetched concurrently since their offsets
// are independent.
func (c *Client) ExpandPlaylist(ctx context.Context, playlistID string, limit int) ([]bot.TrackDescriptor, error) {
	if limit <= 0 {
		limit = 100
	}

	api, err := c.api(ctx)
	if err != nil {
		return nil, platform.NewProviderError("spotify", "playlist", playlistID, err)
	}

	id := spotify.ID(playlistID)
	first, err := api.GetPlaylistItems(ctx, id, spotify.Limit(playlistPageSize))
	if err != nil {
		return nil, platform.NewProviderError("spotify", "playlist", playlistID, err)
	}

	total := int(first.Total)
	if total > limit {
		total = limit
	}

	pages := make([][]spotify.PlaylistItem, (total+playlistPageSize-1)/playlistPageSize)
	if len(pages) == 0 {
		return nil, platform.NewProviderError("spotify", "playlist", playlistID, platform.ErrNotFound)
	}
	pages[0] = first.Items

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for page := 1; page < len(pages); page++ {
		g.Go(func() error {
			items, err := api.GetPlaylistItems(gctx, id,
				spotify.Limit(playlistPageSize), spotify.Offset(page*playlistPageSize))
			if err != nil {
				return err
			}
			pages[page] = items.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, platform.NewProviderError("spotify", "playlist", playlistID, err)
	}

	var descs []bot.TrackDescriptor
	for _, items := range pages {
		for i := range items {
			track := items[i].Track.Track
			if track == nil {
				continue
			}
			descs = append(descs, convertTrack(track))
			if len(descs) >= limit {
				return descs, nil
			}
		}
	}
	if len(descs) == 0 {
		return nil, platform.NewProviderError("spotify", "playlist", playlistID, platform.ErrNotFound)
	}
	return descs, nil
}

// ExpandAlbum fetches an album's track listing. Album tracks come back
// as simple tracks without album info, so the album name is carried over
// from the album itself. Most albums fit the first page; overflow pages
// are fetched sequentially.
func (c *Client) ExpandAlbum(ctx context.Context, albumID string, limit int) ([]bot.TrackDescriptor, error) {
	if limit <= 0 {
		limit = 100
	}

	api, err := c.api(ctx)
	if err != nil {
		return nil, platform.NewProviderError("spotify", "album", albumID, err)
	}

	id := spotify.ID(albumID)
	album, err := api.GetAlbum(ctx, id)
	if err != nil {
		return nil, platform.NewProviderError("spotify", "album", albumID, err)
	}

	descs := make([]bot.TrackDescriptor, 0, len(album.Tracks.Tracks))
	page := &album.Tracks
	for {
		for i := range page.Tracks {
			descs = append(descs, convertSimpleTrack(&page.Tracks[i], album.Name))
			if len(descs) >= limit {
				return descs, nil
			}
		}
		if len(page.Tracks) == 0 || len(descs) >= int(page.Total) {
			break
		}
		page, err = api.GetAlbumTracks(ctx, id,
			spotify.Limit(albumPageSize), spotify.Offset(len(descs)))
		if err != nil {
			return nil, platform.NewProviderError("spotify", "album", albumID, err)
		}
	}

	if len(descs) == 0 {
		return nil, platform.NewProviderError("spotify", "album", albumID, platform.ErrNotFound)
	}
	return descs, nil
}

// GetArtwork returns the largest album image for the best matching track.
func (c *Client) GetArtwork(ctx context.Context, desc bot.TrackDescriptor) (*platform.ArtworkRef, error) {
	api, err := c.api(ctx)
	if err != nil {
		return nil, err
	}

	results, err := api.Search(ctx, desc.Query(), spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return nil, err
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, platform.ErrNotFound
	}

	images := results.Tracks.Tracks[0].Album.Images
	if len(images) == 0 {
		return nil, platform.ErrNotFound
	}
	best := images[0]
	for _, img := range images[1:] {
		if img.Width > best.Width {
			best = img
		}
	}
	return &platform.ArtworkRef{URL: best.URL, Width: int(best.Width), Height: int(best.Height)}, nil
}

func convertSimpleTrack(track *spotify.SimpleTrack, albumName string) bot.TrackDescriptor {
	desc := bot.TrackDescriptor{
		Title:    track.Name,
		Album:    albumName,
		Duration: time.Duration(track.Duration) * time.Millisecond,
		TrackID:  string(track.ID),
		Provider: "spotify",
	}
	if len(track.Artists) > 0 {
		desc.Artist = track.Artists[0].Name
	}
	if url, ok := track.ExternalURLs["spotify"]; ok {
		desc.URL = url
	}
	return desc
}

func convertTrack(track *spotify.FullTrack) bot.TrackDescriptor {
	desc := bot.TrackDescriptor{
		Title:    track.Name,
		Album:    track.Album.Name,
		Duration: track.TimeDuration(),
		TrackID:  string(track.ID),
		Provider: "spotify",
	}
	if len(track.Artists) > 0 {
		desc.Artist = track.Artists[0].Name
	}
	if url, ok := track.ExternalURLs["spotify"]; ok {
		desc.URL = url
	}
	return desc
}
