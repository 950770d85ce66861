package ads

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Rotator cycles through the stored ads on a ticker and broadcasts the
// current one as ad_changed, so every open page shows the same ad.
// The collection is re-read on every tick; edits show up on the next turn.
type Rotator struct {
	repo     *Repository
	hub      Broadcaster
	logger   *zap.Logger
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRotator creates an ad rotator. interval <= 0 defaults to 30s.
func NewRotator(repo *Repository, hub Broadcaster, interval time.Duration, logger *zap.Logger) *Rotator {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rotator{
		repo:     repo,
		hub:      hub,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the rotation loop. Call Stop() to release resources.
func (r *Rotator) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(ctx, r.done)
	r.logger.Info("ad rotator started", zap.Duration("interval", r.interval))
}

// Stop stops the rotation and waits for the loop to exit.
func (r *Rotator) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
	<-r.done
	r.logger.Info("ad rotator stopped")
}

func (r *Rotator) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var index int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ads := r.repo.Load(ctx)
			if len(ads) == 0 {
				continue
			}
			cur := ads[index%len(ads)]
			index++
			r.hub.Broadcast(EventAdChanged, cur)
		}
	}
}
