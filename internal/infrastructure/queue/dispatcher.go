package queue

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/taskboard/taskboard-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// AuditDispatcher decouples audit writes from the request path: entries are
// routed to a fixed set of workers using consistent hashing on the entity id,
// preserving per-task audit ordering while keeping Append non-blocking.
// It implements ports.AuditSink in front of the durable sink.
type AuditDispatcher struct {
	workers []chan ports.AuditEntry
	sink    ports.AuditSink
	log     zerolog.Logger
}

// NewAuditDispatcher creates a dispatcher with numWorkers sharded workers
// draining into sink. If numWorkers <= 0, defaultWorkers is used.
func NewAuditDispatcher(numWorkers int, sink ports.AuditSink, log zerolog.Logger) *AuditDispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &AuditDispatcher{
		workers: make([]chan ports.AuditEntry, numWorkers),
		sink:    sink,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.AuditEntry, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *AuditDispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Append enqueues an entry for the worker responsible for its entity. When the
// worker's buffer is full the entry is dropped and logged: audit writes are
// best-effort and must never block or fail the originating mutation.
func (d *AuditDispatcher) Append(_ context.Context, entry ports.AuditEntry) {
	select {
	case d.workers[d.shardIndex(entry.EntityID)] <- entry:
	default:
		d.log.Warn().
			Str("entity_id", entry.EntityID).
			Str("type", entry.Type).
			Msg("audit queue full, dropping entry")
	}
}

// shardIndex maps an entity id deterministically to a worker index.
func (d *AuditDispatcher) shardIndex(entityID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(entityID))
	return int(h.Sum32()) % len(d.workers)
}

func (d *AuditDispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.AuditEntry) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-ch:
			if !ok {
				return
			}
			d.sink.Append(ctx, entry)
			d.log.Trace().
				Int("worker_id", id).
				Str("entity_id", entry.EntityID).
				Msg("audit entry flushed")
		}
	}
}
