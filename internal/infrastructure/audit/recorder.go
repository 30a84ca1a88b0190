// Package audit keeps the audit trail of authenticated requests: a bounded
// in-memory buffer plus optional durable sinks fed by a background worker.
package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/logger"
	"github.com/ronl/business-api/pkg/utils"
)

const sinkWriteTimeout = 5 * time.Second

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Capacity      int
	PruneInterval time.Duration
	QueueSize     int
}

// Recorder buffers audit entries in memory and forwards them to durable sinks.
// The buffer never holds more than Capacity entries; the oldest are evicted first.
type Recorder struct {
	mu       sync.Mutex
	entries  []*models.AuditLogEntry
	capacity int
	interval time.Duration

	queue   chan *models.AuditLogEntry
	sinks   []service.AuditSink
	metrics service.Metrics
	logger  logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewRecorder creates a recorder. Without sinks no worker queue is allocated.
func NewRecorder(cfg RecorderConfig, sinks []service.AuditSink, metrics service.Metrics, log logger.Logger) *Recorder {
	if cfg.Capacity <= 0 {
		cfg.Capacity = constants.DefaultAuditCapacity
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = constants.DefaultAuditPruneInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	r := &Recorder{
		entries:  make([]*models.AuditLogEntry, 0, cfg.Capacity),
		capacity: cfg.Capacity,
		interval: cfg.PruneInterval,
		sinks:    sinks,
		metrics:  metrics,
		logger:   log.WithComponent("audit"),
		stop:     make(chan struct{}),
	}
	if len(sinks) > 0 {
		r.queue = make(chan *models.AuditLogEntry, cfg.QueueSize)
	}
	return r
}

// Record appends an entry and hands it to the sink worker. It never blocks:
// when the sink queue is full the entry stays in memory only and is counted as dropped.
func (r *Recorder) Record(ctx context.Context, entry *models.AuditLogEntry) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	if over := len(r.entries) - r.capacity; over > 0 {
		clear(r.entries[:over])
		r.entries = r.entries[over:]
	}
	r.mu.Unlock()

	r.metrics.RecordAuditEntry(string(entry.Result))
	r.logger.Info(ctx, "Audit log entry",
		logger.String("action", entry.Action),
		logger.String("tenant_id", entry.TenantID),
		logger.String("user_id", entry.UserID),
		logger.String("result", string(entry.Result)),
		logger.String("resource_type", entry.ResourceType),
		logger.String("resource_id", entry.ResourceID),
	)

	if r.queue == nil {
		return
	}
	select {
	case r.queue <- entry:
	default:
		r.metrics.RecordAuditDropped()
		r.logger.Warn(ctx, "Audit sink queue full, entry kept in memory only",
			logger.String("request_id", entry.RequestID))
	}
}

// Prune compacts the buffer to at most Capacity entries on a fresh backing
// array and returns the number of entries kept.
func (r *Recorder) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	if len(r.entries) > r.capacity {
		start = len(r.entries) - r.capacity
	}
	kept := make([]*models.AuditLogEntry, len(r.entries)-start, r.capacity)
	copy(kept, r.entries[start:])
	r.entries = kept
	return len(kept)
}

// Len returns the number of buffered entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Recent returns buffered entries matching query, newest first.
func (r *Recorder) Recent(_ context.Context, query service.AuditQuery) ([]*models.AuditLogEntry, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = constants.DefaultAuditQueryLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.AuditLogEntry, 0, min(limit, len(r.entries)))
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entries[i]
		if query.TenantID != "" && e.TenantID != query.TenantID {
			continue
		}
		if query.UserID != "" && e.UserID != query.UserID {
			continue
		}
		if !query.Since.IsZero() && e.Timestamp.Before(query.Since) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// Start launches the prune ticker and, if sinks are configured, the sink worker.
func (r *Recorder) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		utils.SafeGo(ctx, r.logger, "audit-prune", func() {
			defer r.wg.Done()
			ticker := time.NewTicker(r.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					kept := r.Prune()
					r.logger.Debug(ctx, "Audit buffer pruned", logger.Int("entries", kept))
				case <-r.stop:
					return
				case <-ctx.Done():
					return
				}
			}
		})

		if r.queue == nil {
			return
		}
		r.wg.Add(1)
		utils.SafeGo(ctx, r.logger, "audit-sinks", func() {
			defer r.wg.Done()
			for {
				select {
				case entry := <-r.queue:
					r.deliver(entry)
				case <-r.stop:
					r.drain()
					return
				}
			}
		})
	})
}

// Stop halts the background tasks after delivering queued entries, or when ctx expires.
func (r *Recorder) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stop) })

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case entry := <-r.queue:
			r.deliver(entry)
		default:
			return
		}
	}
}

func (r *Recorder) deliver(entry *models.AuditLogEntry) {
	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
		if err := sink.Write(ctx, entry); err != nil {
			r.metrics.RecordAuditSinkFailure(sink.Name())
			r.logger.Error(ctx, "Failed to write audit entry", err,
				logger.String("sink", sink.Name()),
				logger.String("request_id", entry.RequestID),
			)
		}
		cancel()
	}
}
