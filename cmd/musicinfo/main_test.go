package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"musicinfo/internal/config"
	"musicinfo/internal/logger"
	"musicinfo/internal/musicinfo"
	"musicinfo/internal/shutdown"
)

type relayStub struct {
	server      *httptest.Server
	geminiCalls atomic.Int32
	failGemini  bool
}

const generatedRecord = `{
  "artist": {
    "groupName": "Alice",
    "description": "Indie band from Seoul.",
    "members": [{"name": "Bob", "imageUrl": null, "namuWikiKeyword": "Bob"}],
    "recentIssues": "New album announced."
  },
  "track": {"mediaAppearances": ["Night Drive (film)"]}
}`

func newRelayStub(t *testing.T, failGemini bool) *relayStub {
	t.Helper()
	stub := &relayStub{failGemini: failGemini}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/gemini", func(w http.ResponseWriter, r *http.Request) {
		stub.geminiCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if stub.failGemini {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		reply := map[string]interface{}{
			"candidates": []interface{}{
				map[string]interface{}{
					"content": map[string]interface{}{
						"parts": []interface{}{map[string]string{"text": "```json\n" + generatedRecord + "\n```"}},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(reply)
	})
	mux.HandleFunc("GET /api/spotify/artist-image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"imageUrl":"https://img.example/alice.jpg","genres":["indie","rock"],"followers":12345,"popularity":70,"url":"https://open.spotify.com/artist/alice"}`))
	})

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func writeTestConfig(t *testing.T, modify func(*config.Config)) string {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	if modify != nil {
		modify(&cfg)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := config.SaveConfigFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	sh := shutdown.New(logger.Nop())
	root := newRootCommand(sh)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	root.SetArgs(args)

	err := root.ExecuteContext(sh.Context())
	sh.Shutdown()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("output missing %q:\n%s", want, out)
	}
}

var aliceArgs = []string{"enrich", "--artist", "Alice", "--album", "Blue", "--track", "Intro"}

func TestEnrichAndCacheCommands(t *testing.T) {
	stub := newRelayStub(t, false)
	cfgPath := writeTestConfig(t, func(c *config.Config) { c.RelayURL = stub.server.URL })
	key := musicinfo.DeriveKey(musicinfo.Identity{Artist: "Alice", Album: "Blue", Track: "Intro"})

	out, _, err := runCLI(t, cfgPath, aliceArgs...)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	requireContains(t, out, key)
	requireContains(t, out, "Indie band from Seoul.")
	requireContains(t, out, "12,345")
	requireContains(t, out, "https://img.example/alice.jpg")
	requireContains(t, out, "Night Drive (film)")
	requireContains(t, out, "Members:     Bob <https://namu.wiki/w/Bob>")

	// Second run is served from the cache.
	if _, _, err := runCLI(t, cfgPath, aliceArgs...); err != nil {
		t.Fatalf("enrich (cached): %v", err)
	}
	if got := stub.geminiCalls.Load(); got != 1 {
		t.Fatalf("gemini called %d times, want 1", got)
	}

	if _, _, err := runCLI(t, cfgPath, append(aliceArgs, "--force")...); err != nil {
		t.Fatalf("enrich --force: %v", err)
	}
	if got := stub.geminiCalls.Load(); got != 2 {
		t.Fatalf("gemini called %d times after --force, want 2", got)
	}

	out, _, err = runCLI(t, cfgPath, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, key)
	requireContains(t, out, "1 cached record")

	out, _, err = runCLI(t, cfgPath, "cache", "rm", key)
	if err != nil {
		t.Fatalf("cache rm: %v", err)
	}
	requireContains(t, out, "Removed "+key)

	out, _, _ = runCLI(t, cfgPath, "cache", "list")
	requireContains(t, out, "No cached records.")

	if _, _, err := runCLI(t, cfgPath, "cache", "rm", key); err == nil {
		t.Error("removing a missing key should fail")
	}
}

func TestEnrichJSON(t *testing.T) {
	stub := newRelayStub(t, false)
	cfgPath := writeTestConfig(t, func(c *config.Config) { c.RelayURL = stub.server.URL })

	out, _, err := runCLI(t, cfgPath, append(aliceArgs, "--json")...)
	if err != nil {
		t.Fatalf("enrich --json: %v", err)
	}

	var rec musicinfo.Record
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if rec.Artist.GroupName != "Alice" || rec.Artist.ImageURL != "https://img.example/alice.jpg" {
		t.Errorf("unexpected artist: %+v", rec.Artist)
	}
	if rec.Artist.Spotify == nil || rec.Artist.Spotify.Followers != 12345 || len(rec.Artist.Spotify.Genres) != 2 {
		t.Errorf("unexpected spotify stats: %+v", rec.Artist.Spotify)
	}
	if len(rec.Artist.Members) != 1 || rec.Artist.Members[0].ImageURL != nil {
		t.Errorf("unexpected members: %+v", rec.Artist.Members)
	}
}

func TestEnrichDegraded(t *testing.T) {
	stub := newRelayStub(t, true)
	cfgPath := writeTestConfig(t, func(c *config.Config) { c.RelayURL = stub.server.URL })

	out, _, err := runCLI(t, cfgPath, aliceArgs...)
	if err != nil {
		t.Fatalf("enrich should degrade, not fail: %v", err)
	}
	requireContains(t, out, "Warning:")
	requireContains(t, out, "https://img.example/alice.jpg")
	if got := stub.geminiCalls.Load(); got != 2 {
		t.Errorf("gemini called %d times, want primary and fallback", got)
	}

	out, _, _ = runCLI(t, cfgPath, "cache", "list")
	requireContains(t, out, "degraded")
}

func TestCacheClear(t *testing.T) {
	stub := newRelayStub(t, false)
	cfgPath := writeTestConfig(t, func(c *config.Config) { c.RelayURL = stub.server.URL })

	runCLI(t, cfgPath, aliceArgs...)
	runCLI(t, cfgPath, "enrich", "--artist", "Alice", "--track", "Outro")

	out, _, err := runCLI(t, cfgPath, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Cleared 2 cached records")

	out, _, _ = runCLI(t, cfgPath, "cache", "list")
	requireContains(t, out, "No cached records.")
}

func TestEnrichRequiresArtistAndTrack(t *testing.T) {
	cfgPath := writeTestConfig(t, nil)
	_, _, err := runCLI(t, cfgPath, "enrich", "--artist", "Alice")
	if err == nil || !strings.Contains(err.Error(), "--track") {
		t.Errorf("err = %v, want missing flag error", err)
	}
}

func TestInvalidConfigIsRejected(t *testing.T) {
	cfgPath := writeTestConfig(t, func(c *config.Config) { c.CacheTTLDays = 0 })
	_, _, err := runCLI(t, cfgPath, "cache", "list")
	if err == nil || !strings.Contains(err.Error(), "configuration error") {
		t.Errorf("err = %v, want configuration error", err)
	}
}

func TestLookupMissingFile(t *testing.T) {
	cfgPath := writeTestConfig(t, nil)
	if _, _, err := runCLI(t, cfgPath, "lookup", filepath.Join(t.TempDir(), "missing.flac")); err == nil {
		t.Error("lookup of a missing file should fail")
	}
}

func TestInitConfig(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, _, err := runCLI(t, "", "init-config", "--path", target)
	if err != nil {
		t.Fatalf("init-config: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	cfg, err := config.LoadConfigFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sample configuration is invalid: %v", err)
	}

	if _, _, err := runCLI(t, "", "init-config", "--path", target); err == nil {
		t.Error("init-config should refuse to overwrite without --force")
	}
	if _, _, err := runCLI(t, "", "init-config", "--path", target, "--force"); err != nil {
		t.Errorf("init-config --force: %v", err)
	}
}

func TestPrintRecord(t *testing.T) {
	var buf bytes.Buffer
	rec := musicinfo.Fallback(musicinfo.Identity{Artist: "Alice", Track: "Intro"}, errors.New("relay down"))
	printRecord(&buf, "art_x", rec)

	out := buf.String()
	requireContains(t, out, "Key:         art_x")
	requireContains(t, out, "generated text unavailable: relay down")
	if strings.Contains(out, "Followers") {
		t.Errorf("record without stats printed followers:\n%s", out)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Key", "Age"}, [][]string{{"k1", "now"}, {"k2"}}, []columnAlignment{alignLeft, alignRight})
	for _, want := range []string{"Key", "Age", "k1", "k2", "now"} {
		requireContains(t, out, want)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("empty header should render nothing")
	}
}
