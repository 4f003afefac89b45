package ytmusic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

// Client wraps the YouTube Music search API with a plain YouTube search
// fallback, and downloads audio through yt-dlp.
type Client struct {
	logger   bot.Logger
	fallback *ytsearch.Client
}

func New(logger bot.Logger) *Client {
	return &Client{
		logger:   logger,
		fallback: ytsearch.NewClient(nil),
	}
}

// Search queries YouTube Music first; when the music catalog comes up
// empty the plain YouTube index takes over, which is what rescues covers,
// uploads, and anything not on the music service.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error) {
	if limit <= 0 {
		limit = 5
	}

	results, err := c.searchMusic(ctx, query, limit)
	if err != nil {
		c.logger.Debug("ytmusic search failed, trying youtube", "query", query, "error", err)
	}
	if len(results) > 0 {
		return results, nil
	}

	results, fbErr := c.searchYouTube(ctx, query, limit)
	if fbErr != nil {
		if err == nil {
			err = fbErr
		}
		return nil, platform.NewProviderError("ytmusic", "search", query, err)
	}
	if len(results) == 0 {
		return nil, platform.NewProviderError("ytmusic", "search", query, platform.ErrNotFound)
	}
	return results, nil
}

func (c *Client) searchMusic(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error) {
	type searchOut struct {
		descs []bot.TrackDescriptor
		err   error
	}
	out := make(chan searchOut, 1)

	// The ytmusic client has no context support; bound it ourselves.
	go func() {
		result, err := ytmusic.TrackSearch(query).Next()
		if err != nil {
			out <- searchOut{err: err}
			return
		}

		var descs []bot.TrackDescriptor
		for _, track := range result.Tracks {
			if track.VideoID == "" {
				continue
			}
			desc := bot.TrackDescriptor{
				Title:    track.Title,
				Duration: time.Duration(track.Duration) * time.Second,
				URL:      "https://music.youtube.com/watch?v=" + track.VideoID,
				TrackID:  track.VideoID,
				Provider: "ytmusic",
			}
			if len(track.Artists) > 0 {
				desc.Artist = track.Artists[0].Name
			}
			descs = append(descs, desc)
			if len(descs) >= limit {
				break
			}
		}
		out <- searchOut{descs: descs}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-out:
		return res.descs, res.err
	}
}

func (c *Client) searchYouTube(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error) {
	result, err := c.fallback.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	var descs []bot.TrackDescriptor
	for _, video := range result.Results {
		if video.VideoID == "" {
			continue
		}
		artist, title := SplitUploaderTitle(video.Title)
		descs = append(descs, bot.TrackDescriptor{
			Title:    title,
			Artist:   artist,
			URL:      "https://www.youtube.com/watch?v=" + video.VideoID,
			TrackID:  video.VideoID,
			Provider: "ytmusic",
		})
		if len(descs) >= limit {
			break
		}
	}
	return descs, nil
}

// SplitUploaderTitle breaks a "Artist - Title" video title apart. Videos
// without the separator keep the whole string as the title, leaving
// verification to lean on the title alone.
func SplitUploaderTitle(videoTitle string) (artist, title string) {
	parts := strings.SplitN(videoTitle, " - ", 2)
	if len(parts) == 2 && strings.TrimSpace(parts[0]) != "" {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return "", strings.TrimSpace(videoTitle)
}

// Download pulls audio for the descriptor into destDir via yt-dlp,
// converting to m4a so every cached artifact shares one container.
func (c *Client) Download(ctx context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, err
	}

	target := desc.URL
	if target == "" {
		if desc.TrackID != "" {
			target = "https://www.youtube.com/watch?v=" + desc.TrackID
		} else {
			// No URL at all: let yt-dlp search, taking the top hit.
			target = "ytsearch1:" + desc.Query()
		}
	}

	key := bot.CacheKey(desc.Artist, desc.Title)
	path := filepath.Join(destDir, key+".m4a")

	_, err := ytdlp.New().
		Format("bestaudio[ext=m4a]/bestaudio").
		ExtractAudio().
		AudioFormat("m4a").
		Output(filepath.Join(destDir, key+".%(ext)s")).
		NoPlaylist().
		NoPart().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, target)
	if err != nil {
		return nil, platform.NewProviderError("ytmusic", "download", desc.DisplayName(), err)
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return nil, platform.NewProviderError("ytmusic", "download", desc.DisplayName(),
			fmt.Errorf("yt-dlp produced no output at %s", path))
	}

	return &bot.ResolvedArtifact{
		Path:     path,
		Provider: "ytmusic",
		Format:   "m4a",
		Size:     info.Size(),
	}, nil
}

// ExpandPlaylist flat-extracts a playlist into descriptors without
// downloading anything.
func (c *Client) ExpandPlaylist(ctx context.Context, playlistID string, limit int) ([]bot.TrackDescriptor, error) {
	if limit <= 0 {
		limit = 100
	}

	res, err := ytdlp.New().
		FlatPlaylist().
		Print("%(url)s\t%(title)s\t%(uploader)s\t%(duration)s").
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, "https://www.youtube.com/playlist?list="+playlistID)
	if err != nil {
		return nil, platform.NewProviderError("ytmusic", "playlist", playlistID, err)
	}

	var descs []bot.TrackDescriptor
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			continue
		}
		duration, _ := time.ParseDuration(fields[3] + "s")
		artist, title := SplitUploaderTitle(fields[1])
		if artist == "" {
			artist = strings.TrimSpace(fields[2])
		}
		descs = append(descs, bot.TrackDescriptor{
			Title:    title,
			Artist:   artist,
			Duration: duration,
			URL:      fields[0],
			Provider: "ytmusic",
		})
	}
	if len(descs) == 0 {
		return nil, platform.NewProviderError("ytmusic", "playlist", playlistID, platform.ErrNotFound)
	}
	return descs, nil
}

// GetArtwork returns the largest thumbnail for the best matching track.
func (c *Client) GetArtwork(ctx context.Context, desc bot.TrackDescriptor) (*platform.ArtworkRef, error) {
	type artOut struct {
		ref *platform.ArtworkRef
		err error
	}
	out := make(chan artOut, 1)

	go func() {
		result, err := ytmusic.TrackSearch(desc.Query()).Next()
		if err != nil {
			out <- artOut{err: err}
			return
		}
		for _, track := range result.Tracks {
			if len(track.Thumbnails) == 0 {
				continue
			}
			best := track.Thumbnails[0]
			for _, t := range track.Thumbnails[1:] {
				if t.Width > best.Width {
					best = t
				}
			}
			out <- artOut{ref: &platform.ArtworkRef{URL: best.URL, Width: best.Width, Height: best.Height}}
			return
		}
		out <- artOut{err: platform.ErrNotFound}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-out:
		return res.ref, res.err
	}
}
