package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"musicinfo/internal/cache"
	"musicinfo/internal/enrich"
	"musicinfo/internal/kvstore"
	"musicinfo/internal/logger"
	"musicinfo/internal/musicinfo"
	"musicinfo/internal/session"
	"musicinfo/internal/shutdown"
)

type stubText struct {
	calls   atomic.Int32
	block   bool
	started chan struct{}
}

func newStubText(block bool) *stubText {
	return &stubText{block: block, started: make(chan struct{}, 4)}
}

func (s *stubText) Describe(ctx context.Context, id musicinfo.Identity) (musicinfo.Record, error) {
	s.calls.Add(1)
	select {
	case s.started <- struct{}{}:
	default:
	}
	if s.block {
		<-ctx.Done()
		return musicinfo.Record{}, ctx.Err()
	}
	return musicinfo.Record{
		Artist: musicinfo.ArtistInfo{
			GroupName:   id.Artist,
			Description: "A band.",
			Members:     []musicinfo.MemberRef{{Name: "Bob", NamuWikiKeyword: "Bob Lee"}},
		},
		Track: musicinfo.TrackInfo{MediaAppearances: []string{}},
	}, nil
}

func newTestServer(t *testing.T, text *stubText) http.Handler {
	t.Helper()
	return newPanelServer(t, text).Router()
}

func newPanelServer(t *testing.T, text *stubText) *Server {
	t.Helper()
	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "musicinfo.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })

	log := logger.Nop()
	orch := enrich.New(cache.New(kv, log), text, nil, log)
	panel := session.NewController(orch, session.NewSettings(kv, log), log)
	t.Cleanup(panel.Close)

	sh := shutdown.New(log)
	t.Cleanup(sh.Shutdown)

	return NewServer(sh.Context(), panel, orch, NewJobManager(), sh, log)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return v
}

const aliceTrack = `{"artist":"Alice","album":"Blue","title":"Intro"}`

func waitJob(t *testing.T, h http.Handler, id string) JobResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job := decode[JobResponse](t, do(t, h, http.MethodGet, "/api/jobs/"+id, ""))
		if job.Status.Done() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return JobResponse{}
}

func startJob(t *testing.T, h http.Handler, path string) JobResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, path, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST %s status = %d, body = %s", path, rec.Code, rec.Body)
	}
	return decode[JobResponse](t, rec)
}

func TestSetTrackAndState(t *testing.T) {
	h := newTestServer(t, newStubText(false))

	rec := do(t, h, http.MethodPut, "/api/track", aliceTrack)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	state := decode[session.State](t, rec)
	if state.Track == nil || state.Track.Artist != "Alice" || state.Record != nil || state.Loading {
		t.Errorf("unexpected state: %+v", state)
	}

	state = decode[session.State](t, do(t, h, http.MethodGet, "/api/state", ""))
	if state.Track == nil || state.Track.Title != "Intro" || !state.Online || !state.PanelEnabled {
		t.Errorf("unexpected state: %+v", state)
	}

	state = decode[session.State](t, do(t, h, http.MethodDelete, "/api/track", ""))
	if state.Track != nil {
		t.Errorf("track not cleared: %+v", state.Track)
	}
}

func TestBadRequests(t *testing.T) {
	h := newTestServer(t, newStubText(false))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "track without title", method: http.MethodPut, path: "/api/track", body: `{"artist":"Alice"}`, want: http.StatusBadRequest},
		{name: "track invalid json", method: http.MethodPut, path: "/api/track", body: `{`, want: http.StatusBadRequest},
		{name: "online without flag", method: http.MethodPut, path: "/api/online", body: `{}`, want: http.StatusBadRequest},
		{name: "panel without flag", method: http.MethodPut, path: "/api/panel", body: `{}`, want: http.StatusBadRequest},
		{name: "load without track", method: http.MethodPost, path: "/api/load", want: http.StatusConflict},
		{name: "unknown job", method: http.MethodGet, path: "/api/jobs/load_missing", want: http.StatusNotFound},
		{name: "cancel unknown job", method: http.MethodPost, path: "/api/jobs/load_missing/cancel", want: http.StatusNotFound},
		{name: "wrong method", method: http.MethodPost, path: "/api/state", want: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, tt.method, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLoadSkippedStates(t *testing.T) {
	h := newTestServer(t, newStubText(false))
	do(t, h, http.MethodPut, "/api/track", aliceTrack)

	do(t, h, http.MethodPut, "/api/online", `{"online":false}`)
	if rec := do(t, h, http.MethodPost, "/api/load", ""); rec.Code != http.StatusConflict {
		t.Errorf("load while offline: status = %d, want 409", rec.Code)
	}
	do(t, h, http.MethodPut, "/api/online", `{"online":true}`)

	state := decode[session.State](t, do(t, h, http.MethodPut, "/api/panel", `{"enabled":false}`))
	if state.PanelEnabled {
		t.Fatal("panel should be disabled")
	}
	if rec := do(t, h, http.MethodPost, "/api/reload", ""); rec.Code != http.StatusConflict {
		t.Errorf("reload while disabled: status = %d, want 409", rec.Code)
	}
}

func TestLoadJobCompletes(t *testing.T) {
	text := newStubText(false)
	h := newTestServer(t, text)
	do(t, h, http.MethodPut, "/api/track", aliceTrack)

	job := startJob(t, h, "/api/load")
	if job.Artist != "Alice" || job.Track != "Intro" || job.Force {
		t.Errorf("unexpected job: %+v", job)
	}

	done := waitJob(t, h, job.ID)
	if done.Status != StatusCompleted || done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("unexpected finished job: %+v", done)
	}

	state := decode[StateResponse](t, do(t, h, http.MethodGet, "/api/state", ""))
	if state.Record == nil || state.Record.Artist.GroupName != "Alice" || !state.LoadedOnce || !state.HasCache {
		t.Errorf("unexpected state: %+v", state)
	}
	wantLinks := []MemberLink{{Name: "Bob", URL: "https://namu.wiki/w/Bob%20Lee"}}
	if !reflect.DeepEqual(state.MemberLinks, wantLinks) {
		t.Errorf("member links = %+v, want %+v", state.MemberLinks, wantLinks)
	}

	entries := decode[[]CacheEntryResponse](t, do(t, h, http.MethodGet, "/api/cache", ""))
	wantKey := musicinfo.DeriveKey(musicinfo.Identity{Artist: "Alice", Album: "Blue", Track: "Intro"})
	if len(entries) != 1 || entries[0].Key != wantKey || entries[0].GroupName != "Alice" || entries[0].Age == "" {
		t.Errorf("unexpected cache entries: %+v", entries)
	}

	jobs := decode[[]JobResponse](t, do(t, h, http.MethodGet, "/api/jobs", ""))
	if len(jobs) != 1 || jobs[0].ID != job.ID {
		t.Errorf("unexpected job list: %+v", jobs)
	}
}

func TestReloadAndClearCache(t *testing.T) {
	text := newStubText(false)
	h := newTestServer(t, text)
	do(t, h, http.MethodPut, "/api/track", aliceTrack)

	waitJob(t, h, startJob(t, h, "/api/load").ID)

	// A plain load is answered from the cache.
	waitJob(t, h, startJob(t, h, "/api/load").ID)
	if got := text.calls.Load(); got != 1 {
		t.Fatalf("text provider called %d times, want 1", got)
	}

	reload := startJob(t, h, "/api/reload")
	if !reload.Force {
		t.Error("reload job should be forced")
	}
	if done := waitJob(t, h, reload.ID); done.Status != StatusCompleted {
		t.Fatalf("reload status = %s", done.Status)
	}
	if got := text.calls.Load(); got != 2 {
		t.Errorf("text provider called %d times after reload, want 2", got)
	}

	state := decode[session.State](t, do(t, h, http.MethodDelete, "/api/cache", ""))
	if state.Record != nil || state.HasCache || state.LoadedOnce {
		t.Errorf("unexpected state after clear: %+v", state)
	}
	entries := decode[[]CacheEntryResponse](t, do(t, h, http.MethodGet, "/api/cache", ""))
	if len(entries) != 0 {
		t.Errorf("cache not empty: %+v", entries)
	}
}

func TestCancelJob(t *testing.T) {
	text := newStubText(true)
	h := newTestServer(t, text)
	do(t, h, http.MethodPut, "/api/track", aliceTrack)

	job := startJob(t, h, "/api/load")
	select {
	case <-text.started:
	case <-time.After(2 * time.Second):
		t.Fatal("load never reached the text provider")
	}

	if rec := do(t, h, http.MethodPost, "/api/jobs/"+job.ID+"/cancel", ""); rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", rec.Code, rec.Body)
	}
	if done := waitJob(t, h, job.ID); done.Status != StatusCancelled || done.Error != "" {
		t.Errorf("unexpected cancelled job: %+v", done)
	}

	state := decode[session.State](t, do(t, h, http.MethodGet, "/api/state", ""))
	if state.Loading || state.Err != "" || state.Track == nil {
		t.Errorf("cancellation leaked into state: %+v", state)
	}

	if rec := do(t, h, http.MethodPost, "/api/jobs/"+job.ID+"/cancel", ""); rec.Code != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", rec.Code)
	}
}

func TestJobLoadsItsOwnTrack(t *testing.T) {
	text := newStubText(false)
	s := newPanelServer(t, text)
	h := s.Router()
	do(t, h, http.MethodPut, "/api/track", aliceTrack)

	alice := musicinfo.Identity{Artist: "Alice", Album: "Blue", Track: "Intro"}
	job := s.jobMgr.CreateJob(alice, false)
	do(t, h, http.MethodPut, "/api/track", `{"artist":"Bravo","album":"Red","title":"One"}`)

	s.processJob(context.Background(), job)

	done, err := s.jobMgr.GetJob(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != StatusCancelled {
		t.Errorf("job for a replaced track finished as %s, want cancelled", done.Status)
	}
	if got := text.calls.Load(); got != 0 {
		t.Errorf("text provider called %d times, want 0", got)
	}
	if entries := decode[[]CacheEntryResponse](t, do(t, h, http.MethodGet, "/api/cache", "")); len(entries) != 0 {
		t.Errorf("another track was enriched: %+v", entries)
	}
}

func TestCancelPendingJobNeverLoads(t *testing.T) {
	text := newStubText(true)
	s := newPanelServer(t, text)
	h := s.Router()
	do(t, h, http.MethodPut, "/api/track", aliceTrack)

	running := startJob(t, h, "/api/load")
	select {
	case <-text.started:
	case <-time.After(2 * time.Second):
		t.Fatal("load never reached the text provider")
	}

	pending := s.jobMgr.CreateJob(musicinfo.Identity{Artist: "Alice", Album: "Blue", Track: "Intro"}, false)
	rec := do(t, h, http.MethodPost, "/api/jobs/"+pending.ID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decode[map[string]string](t, rec)["status"]; got != "cancelled" {
		t.Errorf("cancel response status = %q, want cancelled", got)
	}

	s.processJob(context.Background(), pending)
	if job, _ := s.jobMgr.GetJob(pending.ID); job.Status != StatusCancelled {
		t.Errorf("pending job finished as %s, want cancelled", job.Status)
	}
	if got := text.calls.Load(); got != 1 {
		t.Errorf("text provider called %d times, want only the running job", got)
	}
	if job, _ := s.jobMgr.GetJob(running.ID); job.Status != StatusRunning {
		t.Errorf("cancelling another job touched the running one: %s", job.Status)
	}

	do(t, h, http.MethodPost, "/api/jobs/"+running.ID+"/cancel", "")
	if done := waitJob(t, h, running.ID); done.Status != StatusCancelled {
		t.Errorf("running job finished as %s, want cancelled", done.Status)
	}
}

func TestTogglePanel(t *testing.T) {
	h := newTestServer(t, newStubText(false))

	state := decode[StateResponse](t, do(t, h, http.MethodPost, "/api/panel/toggle", ""))
	if state.PanelEnabled {
		t.Fatal("first toggle should disable the panel")
	}
	state = decode[StateResponse](t, do(t, h, http.MethodPost, "/api/panel/toggle", ""))
	if !state.PanelEnabled {
		t.Error("second toggle should enable the panel")
	}
}

func TestWebSocketPushesState(t *testing.T) {
	server := httptest.NewServer(newTestServer(t, newStubText(false)))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var state session.State
	if err := conn.ReadJSON(&state); err != nil {
		t.Fatalf("initial state: %v", err)
	}
	if state.Track != nil || !state.Online {
		t.Errorf("unexpected initial state: %+v", state)
	}

	req, _ := http.NewRequest(http.MethodPut, server.URL+"/api/track", strings.NewReader(aliceTrack))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if err := conn.ReadJSON(&state); err != nil {
		t.Fatalf("pushed state: %v", err)
	}
	if state.Track == nil || state.Track.Artist != "Alice" {
		t.Errorf("pushed state has track %+v", state.Track)
	}
}
