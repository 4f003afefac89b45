package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

const defaultBaseURL = "https://lrclib.net"

// Client fetches lyrics from the LRCLIB community database. The exact
// /api/get lookup runs first; when the signature misses, /api/search
// takes the best hit so slightly-off metadata still finds lyrics.
type Client struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  bot.Logger
}

func New(logger bot.Logger) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 2
	retry.RetryWaitMin = 250 * time.Millisecond
	retry.Logger = nil

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "lrclib",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Client{
		baseURL: defaultBaseURL,
		client:  retry.StandardClient(),
		breaker: breaker,
		logger:  logger,
	}
}

type lyricsRecord struct {
	ID           int64   `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// GetLyrics implements platform.LyricsProvider.
func (c *Client) GetLyrics(ctx context.Context, desc bot.TrackDescriptor) (*platform.Lyrics, error) {
	record, err := c.get(ctx, desc)
	if err != nil {
		record, err = c.search(ctx, desc)
	}
	if err != nil {
		return nil, platform.NewProviderError("lrclib", "lyrics", desc.DisplayName(), err)
	}
	return recordToLyrics(record), nil
}

func (c *Client) get(ctx context.Context, desc bot.TrackDescriptor) (*lyricsRecord, error) {
	params := url.Values{}
	params.Set("track_name", desc.Title)
	params.Set("artist_name", desc.Artist)
	if desc.Album != "" {
		params.Set("album_name", desc.Album)
	}
	if desc.Duration > 0 {
		params.Set("duration", strconv.Itoa(int(desc.Duration.Seconds())))
	}

	var record lyricsRecord
	if err := c.fetch(ctx, "/api/get?"+params.Encode(), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) search(ctx context.Context, desc bot.TrackDescriptor) (*lyricsRecord, error) {
	params := url.Values{}
	params.Set("track_name", desc.Title)
	if desc.Artist != "" {
		params.Set("artist_name", desc.Artist)
	}

	var records []lyricsRecord
	if err := c.fetch(ctx, "/api/search?"+params.Encode(), &records); err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].SyncedLyrics != "" || records[i].PlainLyrics != "" {
			return &records[i], nil
		}
	}
	return nil, platform.ErrNotFound
}

// fetch runs one API call through the breaker. A 404 is a miss, not a
// failure, so missing lyrics never trip the breaker.
func (c *Client) fetch(ctx context.Context, path string, out any) error {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return false, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, platform.ErrRateLimited
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("lrclib returned %d", resp.StatusCode)
		}
		return true, json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return platform.ErrUnavailable
		}
		return err
	}
	if found, ok := result.(bool); ok && !found {
		return platform.ErrNotFound
	}
	return nil
}

func recordToLyrics(record *lyricsRecord) *platform.Lyrics {
	lyrics := &platform.Lyrics{
		Plain:  record.PlainLyrics,
		Source: "lrclib",
	}
	if record.SyncedLyrics != "" {
		lyrics.Timestamped = platform.ParseLRC(platform.NormalizeLRCTimestamps(record.SyncedLyrics))
	}
	return lyrics
}
