package store

import (
	"context"
	"sync"

	"github.com/adpulse-org/adpulse/pipeline"
)

// ============================================================================
// MEMORY STORE — process-local Store implementation
// ============================================================================
// Collections are slices guarded by a single RWMutex; the store's native
// concurrency control is what the services rely on (no cross-call locking
// above this layer). Aggregation snapshots the collection under the read
// lock and evaluates the plan outside it; plan evaluation never mutates
// documents.
// ============================================================================

// Memory is an in-memory Store.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]pipeline.Doc
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string][]pipeline.Doc)}
}

// Find returns shallow copies of matching documents in insertion order.
func (m *Memory) Find(ctx context.Context, collection string, filter pipeline.MatchStage) ([]pipeline.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []pipeline.Doc
	for _, doc := range m.collections[collection] {
		if filter == nil || filter.Matches(doc) {
			out = append(out, copyDoc(doc))
		}
	}
	return out, nil
}

// Aggregate runs a stage plan over the collection.
func (m *Memory) Aggregate(ctx context.Context, collection string, p pipeline.Pipeline) ([]pipeline.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	docs := make([]pipeline.Doc, len(m.collections[collection]))
	for i, doc := range m.collections[collection] {
		docs[i] = copyDoc(doc)
	}
	m.mu.RUnlock()

	return p.Run(docs)
}

// Upsert replaces the fields of the first matching document, or inserts a
// new one carrying the filter's equality fields.
func (m *Memory) Upsert(ctx context.Context, collection string, filter pipeline.MatchStage, doc pipeline.Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.collections[collection] {
		if filter.Matches(existing) {
			for k, v := range doc {
				existing[k] = v
			}
			return nil
		}
	}

	fresh := pipeline.Doc{"_id": NewDocumentID()}
	for field, cond := range filter {
		if !cond.Has {
			fresh[field] = cond.Eq
		}
	}
	for k, v := range doc {
		fresh[k] = v
	}
	m.collections[collection] = append(m.collections[collection], fresh)
	return nil
}

// DeleteMany removes every matching document.
func (m *Memory) DeleteMany(ctx context.Context, collection string, filter pipeline.MatchStage) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.collections[collection][:0]
	var removed int64
	for _, doc := range m.collections[collection] {
		if filter.Matches(doc) {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	m.collections[collection] = kept
	return removed, nil
}

// InsertMany appends documents, assigning DocumentIDs where absent.
func (m *Memory) InsertMany(ctx context.Context, collection string, docs []pipeline.Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, doc := range docs {
		stored := copyDoc(doc)
		if _, ok := stored["_id"]; !ok {
			stored["_id"] = NewDocumentID()
		}
		m.collections[collection] = append(m.collections[collection], stored)
	}
	return nil
}

// Count reports the number of documents in a collection.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func copyDoc(doc pipeline.Doc) pipeline.Doc {
	out := make(pipeline.Doc, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
