package service

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rfidlock/doorkeeper/internal/doorkeeper/store"
	"github.com/rfidlock/doorkeeper/internal/metrics"
)

// ScanReaper periodically expires scans that outlived their handshake
// window and deletes finished scans older than the retention period. It runs
// as a background goroutine and is stopped via its context or Stop.
//
// A retention of 0 keeps finished scans forever; expiry still runs.
type ScanReaper struct {
	scans     store.ScanStore
	policy    ScanPolicy
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    log.FieldLogger
	metrics   *metrics.Metrics

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// ReaperConfig holds the parameters for NewScanReaper.
type ReaperConfig struct {
	Policy ScanPolicy

	// Retention is how long consumed and expired scans are kept.
	Retention time.Duration

	// Interval is how often the reaper runs. Defaults to 1m.
	Interval time.Duration

	Now     func() time.Time
	Metrics *metrics.Metrics
}

// NewScanReaper creates a reaper but does not start it.
func NewScanReaper(scans store.ScanStore, cfg ReaperConfig, logger log.FieldLogger) *ScanReaper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ScanReaper{
		scans:     scans,
		policy:    cfg.Policy.withDefaults(),
		retention: cfg.Retention,
		interval:  interval,
		now:       now,
		logger:    logger,
		metrics:   cfg.Metrics,
		done:      make(chan struct{}),
	}
}

// Start runs an immediate pass, then repeats on the configured interval
// until ctx is cancelled or Stop is called. Calling Start again is a no-op.
func (r *ScanReaper) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		ctx, r.cancel = context.WithCancel(ctx)
		go r.loop(ctx)

		r.logger.WithFields(log.Fields{
			"timeout":   r.policy.Timeout.String(),
			"ready_ttl": r.policy.ReadyTTL.String(),
			"retention": r.retention.String(),
			"interval":  r.interval.String(),
		}).Info("scan reaper started")
	})
}

// Stop signals the reaper to exit and waits for it. Safe to call more than
// once, and before Start.
func (r *ScanReaper) Stop() {
	r.startOnce.Do(func() { close(r.done) })
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *ScanReaper) loop(ctx context.Context) {
	defer close(r.done)

	r.Reap(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap(ctx)
		}
	}
}

// ReapResult counts what a single pass changed.
type ReapResult struct {
	ExpiredWaiting int64
	ExpiredReady   int64
	Pruned         int64
}

// Reap performs one pass. Errors are logged; the next pass retries.
func (r *ScanReaper) Reap(ctx context.Context) ReapResult {
	now := r.now().UTC()
	var res ReapResult
	var err error

	res.ExpiredWaiting, err = r.scans.ExpireStartedBefore(ctx, store.ScanWaiting, now.Add(-r.policy.Timeout), now)
	if err != nil {
		r.logger.WithError(err).Error("expire waiting scans")
	}
	res.ExpiredReady, err = r.scans.ExpireStartedBefore(ctx, store.ScanReady, now.Add(-r.policy.ReadyTTL), now)
	if err != nil {
		r.logger.WithError(err).Error("expire ready scans")
	}
	if r.retention > 0 {
		res.Pruned, err = r.scans.PruneFinishedBefore(ctx, now.Add(-r.retention))
		if err != nil {
			r.logger.WithError(err).Error("prune finished scans")
		}
	}

	r.metrics.KeycardScans("expired", res.ExpiredWaiting+res.ExpiredReady)
	if res != (ReapResult{}) {
		r.logger.WithFields(log.Fields{
			"expired_waiting": res.ExpiredWaiting,
			"expired_ready":   res.ExpiredReady,
			"pruned":          res.Pruned,
		}).Info("scan reaper pass")
	}
	return res
}
