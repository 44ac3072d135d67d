package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"musicinfo/internal/logger"
	"musicinfo/internal/musicinfo"
)

// ArtistImage is the relay's artist-image payload.
type ArtistImage struct {
	ImageURL   *string  `json:"imageUrl"`
	Genres     []string `json:"genres"`
	Followers  int      `json:"followers"`
	Popularity int      `json:"popularity"`
	URL        *string  `json:"url"`
	Error      string   `json:"error,omitempty"`
}

// NewArtistImage converts a lookup result to the relay payload.
func NewArtistImage(p musicinfo.Partial) ArtistImage {
	img := ArtistImage{
		Genres:     p.Genres,
		Followers:  p.Followers,
		Popularity: p.Popularity,
	}
	if img.Genres == nil {
		img.Genres = []string{}
	}
	if p.ImageURL != "" {
		img.ImageURL = &p.ImageURL
	}
	if p.URL != "" {
		img.URL = &p.URL
	}
	return img
}

// RelayClient looks up artists through the relay's artist-image endpoint,
// for setups where the Spotify credentials live only on the relay.
type RelayClient struct {
	relayURL   string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewRelayClient creates a client for the relay at relayURL.
func NewRelayClient(relayURL string, log *logger.Logger) *RelayClient {
	return &RelayClient{
		relayURL:   strings.TrimRight(relayURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     log,
	}
}

func (c *RelayClient) Name() string { return "spotify-relay" }

// FetchArtist implements musicinfo.ArtistProvider.
func (c *RelayClient) FetchArtist(ctx context.Context, artist string) (musicinfo.Partial, bool) {
	img, err := c.fetch(ctx, musicinfo.SearchName(artist))
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("spotify relay lookup for %q failed: %v", artist, err)
		}
		return musicinfo.Partial{}, false
	}
	if img.Error != "" {
		c.logger.Debug("spotify relay reported for %q: %s", artist, img.Error)
		return musicinfo.Partial{}, false
	}
	if img.ImageURL == nil || *img.ImageURL == "" {
		return musicinfo.Partial{}, false
	}

	p := musicinfo.Partial{
		ImageURL:   *img.ImageURL,
		Genres:     img.Genres,
		Followers:  img.Followers,
		Popularity: img.Popularity,
		HasStats:   true,
	}
	if img.URL != nil {
		p.URL = *img.URL
	}
	return p, true
}

func (c *RelayClient) fetch(ctx context.Context, name string) (ArtistImage, error) {
	if name == "" {
		return ArtistImage{}, fmt.Errorf("empty artist name")
	}
	reqURL := c.relayURL + "/api/spotify/artist-image?" + url.Values{"artist": {name}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return ArtistImage{}, fmt.Errorf("failed to create relay request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ArtistImage{}, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return ArtistImage{}, fmt.Errorf("relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var img ArtistImage
	if err := json.NewDecoder(resp.Body).Decode(&img); err != nil {
		return ArtistImage{}, fmt.Errorf("failed to decode relay response: %w", err)
	}
	return img, nil
}
