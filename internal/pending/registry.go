package pending

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zoneshift/bot/internal/directory"
)

// Registry tracks active waiters, one per outstanding placeholder reply.
type Registry struct {
	store    directory.Store
	platform Platform
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	waiters map[string]*Waiter
}

// NewRegistry creates a waiter registry. interval is the poll cadence,
// timeout the registration window.
func NewRegistry(store directory.Store, platform Platform, interval, timeout time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:    store,
		platform: platform,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		waiters:  make(map[string]*Waiter),
	}
}

// Watch starts a waiter for task. A second Watch for the same reply id is
// ignored.
func (r *Registry) Watch(task Task) {
	r.mu.Lock()
	if r.waiters[task.ReplyID] != nil {
		r.mu.Unlock()
		return
	}
	w := newWaiter(r.store, r.platform, task, r.interval, r.timeout, r.logger)
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	r.waiters[task.ReplyID] = w
	r.mu.Unlock()

	go func() {
		w.run(ctx)
		cancel()
		r.mu.Lock()
		delete(r.waiters, task.ReplyID)
		r.mu.Unlock()
	}()

	r.logger.Info("pending reply watched",
		zap.String("user_id", task.UserID), zap.String("reply_id", task.ReplyID))
}

// Active returns the number of outstanding waiters.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

// StopAll cancels every waiter and blocks until they have exited. Used on
// shutdown; outstanding placeholders are left as-is and will be orphaned,
// which the reaction controls still cover.
func (r *Registry) StopAll() {
	r.mu.Lock()
	waiters := make([]*Waiter, 0, len(r.waiters))
	for _, w := range r.waiters {
		waiters = append(waiters, w)
	}
	r.mu.Unlock()

	for _, w := range waiters {
		w.cancel()
		<-w.done
	}
}
