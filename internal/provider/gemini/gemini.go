// Package gemini generates the narrative half of a music-info record with a
// generative-text model, reached through the local relay so the API key can
// stay server-side.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"musicinfo/internal/logger"
	"musicinfo/internal/musicinfo"
)

// DefaultModels are tried in order: the primary, then one fallback.
var DefaultModels = []string{"gemini-2.0-flash", "gemini-1.5-flash"}

// StatusError is returned when the relay or the upstream model answers with
// a non-2xx status.
type StatusError struct {
	Model      string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("gemini %s returned %d: %s", e.Model, e.StatusCode, body)
}

// ParseError is returned when the model output is not a record of the
// expected shape.
type ParseError struct {
	Model string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gemini %s returned an unusable record: %v", e.Model, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Result is a generated record and the model that produced it.
type Result struct {
	Record musicinfo.Record
	Model  string
}

// Client talks to the relay's text-generation endpoint.
type Client struct {
	relayURL   string
	apiKey     string
	models     []string
	httpClient *http.Client
	logger     *logger.Logger
}

// New creates a client. An empty apiKey lets the relay use its own key.
// models holds the primary and fallback model; extra entries are ignored.
func New(relayURL, apiKey string, models []string, log *logger.Logger) *Client {
	if len(models) == 0 {
		models = DefaultModels
	}
	if len(models) > 2 {
		models = models[:2]
	}
	return &Client{
		relayURL:   strings.TrimRight(relayURL, "/"),
		apiKey:     apiKey,
		models:     models,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     log,
	}
}

// SetTimeout overrides the HTTP timeout for a single model call.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

func (c *Client) Name() string { return "gemini" }

// Describe returns the generated record for id.
func (c *Client) Describe(ctx context.Context, id musicinfo.Identity) (musicinfo.Record, error) {
	res, err := c.Generate(ctx, id)
	if err != nil {
		return musicinfo.Record{}, err
	}
	return res.Record, nil
}

// Generate asks the primary model for a record and falls back to the
// secondary model once on any failure. Cancellation is returned as-is and
// never triggers the fallback.
func (c *Client) Generate(ctx context.Context, id musicinfo.Identity) (Result, error) {
	body := buildRequestBody(id)

	var lastErr error
	for i, model := range c.models {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if i > 0 {
			c.logger.Warn("gemini %s failed for %s, retrying with %s: %v", c.models[i-1], id, model, lastErr)
		}

		rec, err := c.generateWith(ctx, model, body)
		if err == nil {
			c.logger.Debug("gemini %s described %s", model, id)
			return Result{Record: rec, Model: model}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		lastErr = err
	}
	return Result{}, lastErr
}

func (c *Client) generateWith(ctx context.Context, model string, body generateRequest) (musicinfo.Record, error) {
	payload, err := json.Marshal(relayRequest{APIKey: c.apiKey, RequestBody: body, Model: model})
	if err != nil {
		return musicinfo.Record{}, fmt.Errorf("failed to encode gemini request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL+"/api/gemini", bytes.NewReader(payload))
	if err != nil {
		return musicinfo.Record{}, fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return musicinfo.Record{}, fmt.Errorf("gemini %s request failed: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return musicinfo.Record{}, &StatusError{Model: model, StatusCode: resp.StatusCode, Body: string(data)}
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return musicinfo.Record{}, &ParseError{Model: model, Err: fmt.Errorf("decode response: %w", err)}
	}
	text, err := gen.text()
	if err != nil {
		return musicinfo.Record{}, &ParseError{Model: model, Err: err}
	}

	rec, err := ParseRecord(text)
	if err != nil {
		return musicinfo.Record{}, &ParseError{Model: model, Err: err}
	}
	return rec, nil
}

// Relay and upstream wire types

type relayRequest struct {
	APIKey      string          `json:"apiKey"`
	RequestBody generateRequest `json:"requestBody"`
	Model       string          `json:"model"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

func (r generateResponse) text() (string, error) {
	if len(r.Candidates) == 0 {
		return "", errors.New("response has no candidates")
	}
	c := r.Candidates[0].Content
	if c == nil || len(c.Parts) == 0 {
		return "", errors.New("first candidate has no content")
	}
	return c.Parts[0].Text, nil
}
