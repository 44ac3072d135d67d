package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"musicinfo/internal/logger"
	"musicinfo/internal/musicinfo"
)

// ErrNotConfigured is returned by Lookup when client credentials are missing.
var ErrNotConfigured = errors.New("spotify credentials not configured")

// renewalMargin is subtracted from the stated token lifetime so tokens are
// renewed before the server rejects them.
const renewalMargin = 5 * time.Minute

const maxGenres = 3

// TokenCache holds one client-credentials access token. It is shared by
// every request made through the clients it is passed to.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache returns an empty cache.
func NewTokenCache() *TokenCache { return &TokenCache{} }

// Get returns the cached token if it is still usable at now.
func (c *TokenCache) Get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !now.Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

// Set stores a token and the instant it must be renewed.
func (c *TokenCache) Set(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = expiresAt
}

// ExpiresAt is the renewal instant of the cached token.
func (c *TokenCache) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

// Client looks up artists in the Spotify catalog.
type Client struct {
	clientID     string
	clientSecret string
	tokens       *TokenCache
	now          func() time.Time
	httpClient   *http.Client
	logger       *logger.Logger

	// Overridable for testing
	tokenURL string
	apiURL   string
}

// New creates a Spotify client. A nil tokens gets a private cache.
func New(clientID, clientSecret string, tokens *TokenCache, log *logger.Logger) *Client {
	if tokens == nil {
		tokens = NewTokenCache()
	}
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokens:       tokens,
		now:          time.Now,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       log,
		tokenURL:     spotifyauth.TokenURL,
		apiURL:       "https://api.spotify.com/v1/",
	}
}

// SetClock replaces time.Now for token expiry decisions.
func (c *Client) SetClock(now func() time.Time) { c.now = now }

// SetTimeout overrides the HTTP timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

func (c *Client) Name() string { return "spotify" }

// Configured reports whether client credentials are present.
func (c *Client) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// FetchArtist implements musicinfo.ArtistProvider. Every failure, including
// missing credentials, is a miss.
func (c *Client) FetchArtist(ctx context.Context, artist string) (musicinfo.Partial, bool) {
	p, err := c.Lookup(ctx, artist)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			c.logger.Debug("spotify skipped for %q: %v", artist, err)
		} else if ctx.Err() == nil {
			c.logger.Warn("spotify lookup for %q failed: %v", artist, err)
		}
		return musicinfo.Partial{}, false
	}
	if !p.HasStats {
		c.logger.Debug("spotify has no artist matching %q", artist)
		return musicinfo.Partial{}, false
	}
	return p, true
}

// Lookup searches for the best matching artist. A search with no match
// returns a zero Partial and no error.
func (c *Client) Lookup(ctx context.Context, artist string) (musicinfo.Partial, error) {
	if !c.Configured() {
		return musicinfo.Partial{}, ErrNotConfigured
	}
	name := musicinfo.SearchName(artist)
	if name == "" {
		return musicinfo.Partial{}, nil
	}

	token, err := c.token(ctx)
	if err != nil {
		return musicinfo.Partial{}, fmt.Errorf("spotify auth failed: %w", err)
	}

	api := spotify.New(c.authorizedClient(token), spotify.WithBaseURL(c.apiURL))
	result, err := api.Search(ctx, name, spotify.SearchTypeArtist, spotify.Limit(1))
	if err != nil {
		return musicinfo.Partial{}, fmt.Errorf("spotify search failed: %w", err)
	}
	if result.Artists == nil || len(result.Artists.Artists) == 0 {
		return musicinfo.Partial{}, nil
	}
	return toPartial(result.Artists.Artists[0]), nil
}

// token returns a usable access token, exchanging client credentials when
// the cache is empty or due for renewal. Concurrent callers may both renew.
func (c *Client) token(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(c.now()); ok {
		return tok, nil
	}

	obtained := c.now()
	cfg := clientcredentials.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		TokenURL:     c.tokenURL,
	}
	tok, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if err != nil {
		return "", err
	}

	expiresAt := obtained.Add(expiresIn(tok) - renewalMargin)
	c.tokens.Set(tok.AccessToken, expiresAt)
	c.logger.Debug("spotify token renewed, valid until %s", expiresAt.Format(time.RFC3339))
	return tok.AccessToken, nil
}

func (c *Client) authorizedClient(token string) *http.Client {
	return &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.httpClient.Transport,
		},
	}
}

// expiresIn reads the token lifetime the server stated.
func expiresIn(tok *oauth2.Token) time.Duration {
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	if v, ok := tok.Extra("expires_in").(float64); ok && v > 0 {
		return time.Duration(v) * time.Second
	}
	if !tok.Expiry.IsZero() {
		return time.Until(tok.Expiry)
	}
	return time.Hour
}

func toPartial(a spotify.FullArtist) musicinfo.Partial {
	p := musicinfo.Partial{
		Followers:  int(a.Followers.Count),
		Popularity: int(a.Popularity),
		URL:        a.ExternalURLs["spotify"],
		HasStats:   true,
	}
	if len(a.Images) > 0 {
		p.ImageURL = a.Images[0].URL
	}
	for _, g := range a.Genres {
		if len(p.Genres) == maxGenres {
			break
		}
		if g = strings.TrimSpace(g); g != "" {
			p.Genres = append(p.Genres, g)
		}
	}
	return p
}
