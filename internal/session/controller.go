// Package session drives one info panel: it follows the current track,
// loads enrichment on request, cancels superseded loads and publishes the
// derived loading/error/record state to subscribers.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"musicinfo/internal/enrich"
	"musicinfo/internal/logger"
	"musicinfo/internal/musicinfo"
)

// Enricher is the enrichment surface the controller drives.
type Enricher interface {
	Enrich(ctx context.Context, id musicinfo.Identity) (musicinfo.Record, error)
	CachedData(key string) (musicinfo.Record, bool)
	ClearCache(key string)
	HasCachedData() bool
	GenerateCacheKey(id musicinfo.Identity) string
}

// State is what the panel renders.
type State struct {
	Track        *musicinfo.Track  `json:"track"`
	Loading      bool              `json:"loading"`
	Err          string            `json:"error,omitempty"`
	Record       *musicinfo.Record `json:"record"`
	HasCache     bool              `json:"hasCache"`
	Online       bool              `json:"online"`
	LoadedOnce   bool              `json:"loadedOnce"`
	PanelEnabled bool              `json:"panelEnabled"`
	RequestID    string            `json:"requestId,omitempty"`
}

// Controller owns the request lifecycle of one panel.
type Controller struct {
	enricher Enricher
	settings *Settings
	logger   *logger.Logger

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	gen       uint64
	closed    bool
	listeners []chan State
}

// NewController creates a controller. settings may be nil, in which case
// the panel is always enabled.
func NewController(enricher Enricher, settings *Settings, log *logger.Logger) *Controller {
	c := &Controller{enricher: enricher, settings: settings, logger: log}
	c.state = State{
		Online:       true,
		HasCache:     enricher.HasCachedData(),
		PanelEnabled: c.panelEnabled(),
	}
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetTrack switches the panel to t. A cached record is adopted without
// loading; otherwise the record is cleared and nothing is fetched until Load.
// A nil track resets the panel.
func (c *Controller) SetTrack(t *musicinfo.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	prev := c.state.Track
	if t == nil || prev == nil || prev.Identity() != t.Identity() {
		c.supersedeLocked()
	}

	if t == nil {
		c.state.Track = nil
		c.state.Record = nil
		c.state.Err = ""
		c.state.LoadedOnce = false
		c.state.HasCache = false
		c.notifyLocked()
		return
	}

	track := *t
	c.state.Track = &track
	c.state.Err = ""
	key := c.enricher.GenerateCacheKey(track.Identity())
	if rec, ok := c.enricher.CachedData(key); ok {
		c.logger.Debug("panel adopted cached record for %s", track.Identity())
		c.state.Record = &rec
		c.state.LoadedOnce = true
	} else if c.state.Record == nil || prev == nil || prev.Identity() != track.Identity() {
		c.state.Record = nil
		c.state.LoadedOnce = false
	}
	c.state.HasCache = c.enricher.HasCachedData()
	c.notifyLocked()
}

// SetOnline records network availability. Loads are skipped while offline.
func (c *Controller) SetOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Online == online {
		return
	}
	c.state.Online = online
	c.notifyLocked()
}

// SetPanelEnabled persists the panel toggle and applies it.
func (c *Controller) SetPanelEnabled(enabled bool) {
	if c.settings != nil {
		c.settings.SetPanelEnabled(enabled)
	}
	c.applyPanelEnabled(enabled)
}

// TogglePanel flips the panel toggle and returns the new value.
func (c *Controller) TogglePanel() bool {
	var enabled bool
	if c.settings != nil {
		enabled = c.settings.TogglePanel()
	} else {
		enabled = !c.Snapshot().PanelEnabled
	}
	c.applyPanelEnabled(enabled)
	return enabled
}

func (c *Controller) applyPanelEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.PanelEnabled = enabled
	if !enabled {
		c.supersedeLocked()
	}
	c.notifyLocked()
}

// Load enriches the current track, superseding any outstanding load. It
// blocks until the enrichment finishes. It returns enrich.ErrCancelled when
// the load was superseded or cancelled; that outcome never sets State.Err.
func (c *Controller) Load(ctx context.Context) error {
	return c.load(ctx, nil, false)
}

// Reload drops the cached record for the current track and loads it again.
func (c *Controller) Reload(ctx context.Context) error {
	return c.load(ctx, nil, true)
}

// LoadFor is Load bound to id. It returns enrich.ErrCancelled without
// fetching when the panel has moved on to another track.
func (c *Controller) LoadFor(ctx context.Context, id musicinfo.Identity) error {
	return c.load(ctx, &id, false)
}

// ReloadFor is Reload bound to id, with the same track check as LoadFor.
func (c *Controller) ReloadFor(ctx context.Context, id musicinfo.Identity) error {
	return c.load(ctx, &id, true)
}

func (c *Controller) load(ctx context.Context, want *musicinfo.Identity, force bool) error {
	c.mu.Lock()
	if want != nil && (c.state.Track == nil || c.state.Track.Identity() != *want) {
		c.mu.Unlock()
		c.logger.Debug("skipping load of %s: no longer the current track", *want)
		return enrich.ErrCancelled
	}
	if c.closed || c.state.Track == nil || !c.state.Online || !c.state.PanelEnabled {
		c.mu.Unlock()
		return nil
	}

	c.supersedeLocked()
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	gen := c.gen
	id := c.state.Track.Identity()
	reqID := uuid.NewString()

	if force {
		c.enricher.ClearCache(c.enricher.GenerateCacheKey(id))
	}
	c.state.Loading = true
	c.state.Err = ""
	c.state.RequestID = reqID
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.Debug("[%s] loading %s (force=%v)", reqID, id, force)
	rec, err := c.enricher.Enrich(reqCtx, id)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.Debug("[%s] superseded, discarding result", reqID)
		return enrich.ErrCancelled
	}
	c.cancel = nil
	c.state.Loading = false
	c.state.RequestID = ""

	if err != nil {
		if errors.Is(err, enrich.ErrCancelled) {
			c.logger.Debug("[%s] cancelled", reqID)
			c.notifyLocked()
			return err
		}
		c.logger.Warn("[%s] loading %s failed: %v", reqID, id, err)
		c.state.Err = err.Error()
		c.notifyLocked()
		return err
	}

	c.state.Record = &rec
	c.state.LoadedOnce = true
	c.state.HasCache = c.enricher.HasCachedData()
	c.notifyLocked()
	c.logger.Debug("[%s] loaded %s", reqID, id)
	return nil
}

// ClearCache removes every cached record and resets the panel. The
// outstanding load is cancelled first so it cannot write its record back.
func (c *Controller) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersedeLocked()
	c.enricher.ClearCache("")
	c.state.Record = nil
	c.state.Err = ""
	c.state.LoadedOnce = false
	c.state.HasCache = false
	c.notifyLocked()
}

// Close cancels any outstanding load and closes all subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.supersedeLocked()
	c.closed = true
	for _, ch := range c.listeners {
		close(ch)
	}
	c.listeners = nil
}

// Subscribe returns a channel that receives every state change. Slow
// subscribers miss intermediate states.
func (c *Controller) Subscribe() <-chan State {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 10)
	if c.closed {
		close(ch)
		return ch
	}
	c.listeners = append(c.listeners, ch)
	return ch
}

// Unsubscribe removes and closes a listener.
func (c *Controller) Unsubscribe(ch <-chan State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, listener := range c.listeners {
		if listener == ch {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			close(listener)
			break
		}
	}
}

// supersedeLocked cancels the outstanding load, if any, so its result is
// discarded.
func (c *Controller) supersedeLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state.Loading = false
	c.state.RequestID = ""
}

func (c *Controller) notifyLocked() {
	for _, ch := range c.listeners {
		select {
		case ch <- c.state:
		default:
		}
	}
}

func (c *Controller) panelEnabled() bool {
	if c.settings == nil {
		return true
	}
	return c.settings.PanelEnabled()
}
