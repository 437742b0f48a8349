// Package store provides the collection-oriented document store the insight
// pipeline runs against. The interface is intentionally small: filtered
// reads, stage-plan aggregation, upserts, window deletes, and bulk inserts.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/adpulse-org/adpulse/pipeline"
)

// DocumentID is the opaque identity assigned to stored documents. It is NOT
// a plain string inside the store; response paths that leave the backend
// must stringify it explicitly (see the translator's result shaping).
type DocumentID uuid.UUID

// NewDocumentID returns a fresh document identity.
func NewDocumentID() DocumentID {
	return DocumentID(uuid.New())
}

func (id DocumentID) String() string {
	return uuid.UUID(id).String()
}

// Store is the persistence contract consumed by the insight services.
type Store interface {
	// Find returns documents matching the filter, in insertion order.
	Find(ctx context.Context, collection string, filter pipeline.MatchStage) ([]pipeline.Doc, error)

	// Aggregate executes a stage plan against the collection and returns
	// the ordered result rows.
	Aggregate(ctx context.Context, collection string, p pipeline.Pipeline) ([]pipeline.Doc, error)

	// Upsert replaces the first document matching the filter, or inserts
	// the document when nothing matches.
	Upsert(ctx context.Context, collection string, filter pipeline.MatchStage, doc pipeline.Doc) error

	// DeleteMany removes all documents matching the filter and reports how
	// many were removed.
	DeleteMany(ctx context.Context, collection string, filter pipeline.MatchStage) (int64, error)

	// InsertMany appends documents, assigning each a DocumentID.
	InsertMany(ctx context.Context, collection string, docs []pipeline.Doc) error
}
