package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"musicinfo/internal/enrich"
	"musicinfo/internal/musicinfo"
	"musicinfo/internal/session"
)

const timeLayout = "2006-01-02 15:04:05"

type OnlineRequest struct {
	Online *bool `json:"online"`
}

type PanelRequest struct {
	Enabled *bool `json:"enabled"`
}

type JobResponse struct {
	ID          string    `json:"id"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	Track       string    `json:"track"`
	Force       bool      `json:"force"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   string    `json:"created_at"`
	StartedAt   *string   `json:"started_at,omitempty"`
	CompletedAt *string   `json:"completed_at,omitempty"`
}

// StateResponse is the panel state with member wiki links resolved.
type StateResponse struct {
	session.State
	MemberLinks []MemberLink `json:"memberLinks"`
}

type MemberLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func newStateResponse(state session.State) StateResponse {
	resp := StateResponse{State: state, MemberLinks: []MemberLink{}}
	if state.Record != nil {
		for _, m := range state.Record.Artist.Members {
			resp.MemberLinks = append(resp.MemberLinks, MemberLink{Name: m.Name, URL: m.WikiURL()})
		}
	}
	return resp
}

type CacheEntryResponse struct {
	Key       string `json:"key"`
	GroupName string `json:"group_name,omitempty"`
	StoredAt  string `json:"stored_at,omitempty"`
	Age       string `json:"age,omitempty"`
	Degraded  bool   `json:"degraded"`
	Malformed bool   `json:"malformed"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w)
}

func (s *Server) handleSetTrack(w http.ResponseWriter, r *http.Request) {
	var track musicinfo.Track
	if err := json.NewDecoder(r.Body).Decode(&track); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(track.Artist) == "" || strings.TrimSpace(track.Title) == "" {
		http.Error(w, "artist and title are required", http.StatusBadRequest)
		return
	}

	s.panel.SetTrack(&track)
	s.logger.Info("Now playing %s", track.Identity())
	s.writeSnapshot(w)
}

func (s *Server) handleClearTrack(w http.ResponseWriter, r *http.Request) {
	s.panel.SetTrack(nil)
	s.writeSnapshot(w)
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	var req OnlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Online == nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.panel.SetOnline(*req.Online)
	s.writeSnapshot(w)
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	var req PanelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.panel.SetPanelEnabled(*req.Enabled)
	s.writeSnapshot(w)
}

func (s *Server) handleTogglePanel(w http.ResponseWriter, r *http.Request) {
	enabled := s.panel.TogglePanel()
	s.logger.Info("Info panel enabled: %v", enabled)
	s.writeSnapshot(w)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	s.startLoad(w, false)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.startLoad(w, true)
}

func (s *Server) startLoad(w http.ResponseWriter, force bool) {
	state := s.panel.Snapshot()
	switch {
	case state.Track == nil:
		http.Error(w, "no track selected", http.StatusConflict)
		return
	case !state.Online:
		http.Error(w, "offline", http.StatusConflict)
		return
	case !state.PanelEnabled:
		http.Error(w, "panel disabled", http.StatusConflict)
		return
	}

	job := s.jobMgr.CreateJob(state.Track.Identity(), force)
	s.logger.Info("Created job %s for %s", job.ID, job.Identity)

	s.workers.Go(func(ctx context.Context) {
		s.processJob(ctx, job)
	})

	writeJSON(w, http.StatusAccepted, jobToResponse(job))
}

// processJob loads the job's own track. A job cancelled while pending never
// reaches the panel, and one whose track is no longer current is cancelled.
func (s *Server) processJob(ctx context.Context, job Job) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !s.jobMgr.StartJob(job.ID, cancel) {
		s.logger.Debug("Job %s cancelled before it started", job.ID)
		return
	}

	load := s.panel.LoadFor
	if job.Force {
		load = s.panel.ReloadFor
	}
	err := load(ctx, job.Identity)

	switch {
	case err == nil:
		s.jobMgr.UpdateJob(job.ID, func(j *Job) {
			j.Status = StatusCompleted
		})
		s.logger.Info("Job %s completed", job.ID)
	case errors.Is(err, enrich.ErrCancelled):
		s.jobMgr.UpdateJob(job.ID, func(j *Job) {
			j.Status = StatusCancelled
		})
		s.logger.Debug("Job %s cancelled", job.ID)
	default:
		s.jobMgr.UpdateJob(job.ID, func(j *Job) {
			j.Status = StatusFailed
			j.Error = err.Error()
		})
		s.logger.Error("Job %s failed: %v", job.ID, err)
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobMgr.ListJobs()
	responses := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = jobToResponse(job)
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobMgr.GetJob(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, jobToResponse(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobMgr.CancelJob(r.PathValue("id"))
	switch {
	case errors.Is(err, ErrJobNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, ErrJobFinished):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	status := "cancelling"
	if job.Status == StatusCancelled {
		status = string(StatusCancelled)
	}
	s.logger.Info("Cancel requested for job %s", job.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleListCache(w http.ResponseWriter, r *http.Request) {
	entries := s.entries.CacheEntries()
	responses := make([]CacheEntryResponse, len(entries))
	for i, e := range entries {
		responses[i] = CacheEntryResponse{
			Key:       e.Key,
			GroupName: e.GroupName,
			Degraded:  e.Degraded,
			Malformed: e.Malformed,
		}
		if !e.StoredAt.IsZero() {
			responses[i].StoredAt = e.StoredAt.Format(timeLayout)
			responses[i].Age = humanize.Time(e.StoredAt)
		}
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.panel.ClearCache()
	s.logger.Info("Cache cleared")
	s.writeSnapshot(w)
}

func jobToResponse(job Job) *JobResponse {
	resp := &JobResponse{
		ID:        job.ID,
		Artist:    job.Identity.Artist,
		Album:     job.Identity.Album,
		Track:     job.Identity.Track,
		Force:     job.Force,
		Status:    job.Status,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(timeLayout),
	}

	if job.StartedAt != nil {
		started := job.StartedAt.Format(timeLayout)
		resp.StartedAt = &started
	}

	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format(timeLayout)
		resp.CompletedAt = &completed
	}

	return resp
}

func (s *Server) writeSnapshot(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, newStateResponse(s.panel.Snapshot()))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
