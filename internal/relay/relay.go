// Package relay is the small HTTP service that holds provider secrets on
// the server side. It forwards text-generation requests unchanged and
// answers artist-image lookups from the streaming catalog.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"musicinfo/internal/logger"
	"musicinfo/internal/musicinfo"
	"musicinfo/internal/provider/gemini"
	"musicinfo/internal/provider/spotify"
)

// placeholderKey is what unconfigured clients send instead of a key.
const placeholderKey = "API_KEY_NOT_CONFIGURED"

const maxRequestBody = 1 << 20

// ArtistLookup answers artist-image requests.
type ArtistLookup interface {
	Lookup(ctx context.Context, artist string) (musicinfo.Partial, error)
}

// Options configures a Server.
type Options struct {
	Addr         string
	GeminiAPIKey string
	Artists      ArtistLookup
	Logger       *logger.Logger
}

// Server is the relay HTTP server.
type Server struct {
	router     chi.Router
	server     *http.Server
	geminiKey  string
	artists    ArtistLookup
	httpClient *http.Client
	logger     *logger.Logger

	// Overridable for testing
	geminiURL string
}

// New creates a relay server.
func New(opts Options) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		geminiKey:  opts.GeminiAPIKey,
		artists:    opts.Artists,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		logger:     opts.Logger,
		geminiURL:  "https://generativelanguage.googleapis.com/v1beta/models",
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Post("/api/gemini", s.handleGemini)
	s.router.Get("/api/spotify/artist-image", s.handleArtistImage)
	s.router.Get("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("relay shutting down")
	return s.server.Shutdown(shutdownCtx)
}

type geminiRelayRequest struct {
	APIKey      string          `json:"apiKey"`
	RequestBody json.RawMessage `json:"requestBody"`
	Model       string          `json:"model"`
}

func (s *Server) handleGemini(w http.ResponseWriter, r *http.Request) {
	var req geminiRelayRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	key := req.APIKey
	if key == "" || key == placeholderKey {
		key = s.geminiKey
	}
	if key == "" || len(req.RequestBody) == 0 || string(req.RequestBody) == "null" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "an API key is required; set gemini_api_key or GEMINI_API_KEY on the relay",
		})
		return
	}
	model := req.Model
	if model == "" {
		model = gemini.DefaultModels[0]
	}

	upstream := fmt.Sprintf("%s/%s:generateContent?%s", s.geminiURL, url.PathEscape(model), url.Values{"key": {key}}.Encode())
	upReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, upstream, bytes.NewReader(req.RequestBody))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		return
	}
	upReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(upReq)
	if err != nil {
		s.logger.Warn("gemini %s upstream request failed: %v", model, redact(err, key))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("gemini %s upstream returned %d", model, resp.StatusCode)
	} else {
		s.logger.Debug("gemini %s upstream returned %d", model, resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Debug("relaying gemini response failed: %v", err)
	}
}

func (s *Server) handleArtistImage(w http.ResponseWriter, r *http.Request) {
	artist := strings.TrimSpace(r.URL.Query().Get("artist"))
	if artist == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Artist name is required"})
		return
	}
	if s.artists == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Spotify API not configured"})
		return
	}

	p, err := s.artists.Lookup(r.Context(), artist)
	if errors.Is(err, spotify.ErrNotConfigured) {
		s.logger.Warn("artist-image request while spotify credentials are missing")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Spotify API not configured"})
		return
	}
	if err != nil {
		s.logger.Warn("spotify lookup for %q failed: %v", artist, err)
		writeJSON(w, http.StatusOK, spotify.ArtistImage{Error: err.Error()})
		return
	}

	s.logger.Debug("spotify lookup for %q: image=%v", artist, p.ImageURL != "")
	writeJSON(w, http.StatusOK, spotify.NewArtistImage(p))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("[%s] %s %s", middleware.GetReqID(r.Context()), r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// redact hides the API key, which the upstream URL carries, from errors.
func redact(err error, key string) string {
	return strings.ReplaceAll(err.Error(), key, "HIDDEN_KEY")
}
