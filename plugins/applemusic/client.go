package applemusic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

const defaultBaseURL = "https://itunes.apple.com"

// Client queries the iTunes Search API. The API needs no credentials but
// throttles aggressively, so every call goes through a retrying client
// behind a circuit breaker: once iTunes starts refusing, the breaker
// fails fast and the fallback chain moves on without burning its timeout.
type Client struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  bot.Logger
}

func New(logger bot.Logger) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = 2
	retry.RetryWaitMin = 500 * time.Millisecond
	retry.Logger = nil

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "itunes",
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

type searchResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []searchResult `json:"results"`
}

type searchResult struct {
	TrackID          int64  `json:"trackId"`
	TrackName        string `json:"trackName"`
	ArtistName       string `json:"artistName"`
	CollectionName   string `json:"collectionName"`
	TrackTimeMillis  int64  `json:"trackTimeMillis"`
	TrackViewURL     string `json:"trackViewUrl"`
	ArtworkURL100    string `json:"artworkUrl100"`
	WrapperType      string `json:"wrapperType"`
	IsStreamable     bool   `json:"isStreamable"`
	PrimaryGenreName string `json:"primaryGenreName"`
}

// Search queries the song catalog.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error) {
	if limit <= 0 {
		limit = 5
	}

	resp, err := c.search(ctx, query, limit)
	if err != nil {
		return nil, platform.NewProviderError("applemusic", "search", query, err)
	}
	if resp.ResultCount == 0 {
		return nil, platform.NewProviderError("applemusic", "search", query, platform.ErrNotFound)
	}

	descs := make([]bot.TrackDescriptor, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.TrackName == "" {
			continue
		}
		descs = append(descs, bot.TrackDescriptor{
			Title:    r.TrackName,
			Artist:   r.ArtistName,
			Album:    r.CollectionName,
			Duration: time.Duration(r.TrackTimeMillis) * time.Millisecond,
			URL:      r.TrackViewURL,
			TrackID:  fmt.Sprintf("%d", r.TrackID),
			Provider: "applemusic",
		})
		if len(descs) >= limit {
			break
		}
	}
	if len(descs) == 0 {
		return nil, platform.NewProviderError("applemusic", "search", query, platform.ErrNotFound)
	}
	return descs, nil
}

// GetArtwork returns the best match's cover art, upscaled to 600px via
// the documented artwork URL size substitution.
func (c *Client) GetArtwork(ctx context.Context, desc bot.TrackDescriptor) (*platform.ArtworkRef, error) {
	resp, err := c.search(ctx, desc.Query(), 1)
	if err != nil {
		return nil, err
	}
	for _, r := range resp.Results {
		if r.ArtworkURL100 == "" {
			continue
		}
		return &platform.ArtworkRef{
			URL:    UpscaleArtworkURL(r.ArtworkURL100, 600),
			Width:  600,
			Height: 600,
		}, nil
	}
	return nil, platform.ErrNotFound
}

func (c *Client) search(ctx context.Context, term string, limit int) (*searchResponse, error) {
	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", fmt.Sprintf("%d", limit))

	endpoint := c.baseURL + "/search?" + params.Encode()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, platform.ErrRateLimited
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("itunes returned %d", resp.StatusCode)
		}

		var parsed searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("decode itunes response: %w", err)
		}
		return &parsed, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, platform.ErrUnavailable
		}
		return nil, err
	}
	return result.(*searchResponse), nil
}
