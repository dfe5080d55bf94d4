package mongo

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/taskboard/taskboard-api/internal/core/ports"
)

const auditCollection = "audit_events"

// AuditRepository implements ports.AuditSink using MongoDB. Writes are
// fire-and-forget: failures are logged and never returned so a broken audit
// store can never fail a committed task mutation.
type AuditRepository struct {
	db  *mongo.Database
	log zerolog.Logger
}

// NewAuditRepository creates an AuditRepository writing to the audit_events collection.
func NewAuditRepository(db *mongo.Database, log zerolog.Logger) *AuditRepository {
	return &AuditRepository{db: db, log: log}
}

// Append persists an audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry ports.AuditEntry) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"type":        entry.Type,
		"actor_id":    entry.ActorID,
		"entity_id":   entry.EntityID,
		"entity_type": entry.EntityType,
		"realtime":    entry.Realtime,
		"recorded_at": time.Now().UTC(),
	}
	if len(entry.Payload) > 0 {
		doc["payload"] = entry.Payload
	}

	if _, err := r.db.Collection(auditCollection).InsertOne(ctx, doc); err != nil {
		r.log.Warn().Err(err).
			Str("type", entry.Type).
			Str("entity_id", entry.EntityID).
			Msg("failed to append audit entry")
	}
}
