package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"musicinfo/internal/logger"
)

// Handler manages graceful shutdown: a root context cancelled on signal,
// tracked background work, and cleanups run in reverse registration order.
type Handler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
	mu       sync.Mutex
	cleanups []func()
	logger   *logger.Logger
}

// New creates a new shutdown handler
func New(log *logger.Logger) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		ctx:    ctx,
		cancel: cancel,
		logger: log,
	}
}

// Context returns the shutdown context
func (h *Handler) Context() context.Context {
	return h.ctx
}

// AddCleanup registers fn to run on shutdown. The last registered runs first.
func (h *Handler) AddCleanup(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanups = append(h.cleanups, fn)
}

// Listen triggers Shutdown on SIGINT or SIGTERM.
func (h *Handler) Listen() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			h.logger.Info("Received %s, shutting down", sig)
			h.Shutdown()
		case <-h.ctx.Done():
		}
		signal.Stop(sigChan)
	}()
}

// Shutdown cancels the context, waits for tracked work and then runs the
// cleanups. Only the first call has any effect. It must not be called from
// a goroutine started with Go.
func (h *Handler) Shutdown() {
	h.once.Do(func() {
		h.cancel()
		h.wg.Wait()

		h.mu.Lock()
		fns := h.cleanups
		h.cleanups = nil
		h.mu.Unlock()

		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	})
}

// Go runs fn in a tracked goroutine with the shutdown context.
func (h *Handler) Go(fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn(h.ctx)
	}()
}

// Wait waits for all tracked work to complete
func (h *Handler) Wait() {
	h.wg.Wait()
}
