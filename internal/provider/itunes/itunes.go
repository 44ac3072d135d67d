package itunes

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

// entities are searched in order until one yields artwork. Artist results
// rarely carry artwork; album art is the usual hit and music videos tend to
// show the artist.
var entities = []string{"musicArtist", "album", "musicVideo"}

// Client is an iTunes Search API client that implements musicinfo.ArtistProvider.
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	apiURL     string
}

// New creates a new iTunes client.
func New(log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     log,
		apiURL:     "https://itunes.apple.com/search",
	}
}

// SetTimeout overrides the HTTP timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

func (c *Client) Name() string { return "itunes" }

// FetchArtist returns the first artwork found for the artist, upgraded to
// high resolution. It never reports statistics.
func (c *Client) FetchArtist(ctx context.Context, artist string) (musicinfo.Partial, bool) {
	term := musicinfo.SearchName(artist)
	if term == "" {
		return musicinfo.Partial{}, false
	}

	for _, entity := range entities {
		if ctx.Err() != nil {
			return musicinfo.Partial{}, false
		}
		artwork, err := c.search(ctx, term, entity)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("itunes %s search for %q failed: %v", entity, term, err)
			}
			continue
		}
		if artwork != "" {
			return musicinfo.Partial{ImageURL: UpgradeArtwork(artwork)}, true
		}
	}

	c.logger.Debug("itunes has no artwork for %q", term)
	return musicinfo.Partial{}, false
}

// UpgradeArtwork swaps the thumbnail size token for the high-resolution one.
func UpgradeArtwork(artworkURL string) string {
	return strings.Replace(artworkURL, "100x100bb", "1000x1000bb", 1)
}

func (c *Client) search(ctx context.Context, term, entity string) (string, error) {
	params := url.Values{}
	params.Set("term", term)
	params.Set("entity", entity)
	params.Set("limit", "1")

	reqURL := fmt.Sprintf("%s?%s", c.apiURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create itunes request: %w", err)
	}
	req.Header.Set("User-Agent", "musicinfo/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("itunes search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("itunes search returned %d: %s", resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return "", fmt.Errorf("failed to decode itunes response: %w", err)
	}

	for _, item := range searchResp.Results {
		if item.ArtworkURL100 != "" {
			return item.ArtworkURL100, nil
		}
	}
	return "", nil
}

// iTunes Search API response types

type searchResponse struct {
	ResultCount int          `json:"resultCount"`
	Results     []resultItem `json:"results"`
}

type resultItem struct {
	WrapperType      string `json:"wrapperType"`
	ArtistName       string `json:"artistName"`
	PrimaryGenreName string `json:"primaryGenreName"`
	ArtworkURL100    string `json:"artworkUrl100"`
}
