// Package insights holds the daily-insight model and the services built on
// it: structured aggregation, the Shopify daily aggregator, and the
// historical window sync for Meta and Google.
package insights

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/adpulse-org/adpulse/metrics"
	"github.com/adpulse-org/adpulse/pipeline"
	"github.com/adpulse-org/adpulse/store"
)

// ErrAggregation is the generic error surfaced for any execution-time
// failure. The underlying cause goes to the log; its text is not safe to
// hand to end users.
var ErrAggregation = errors.New("internal aggregation error")

// Service runs aggregation plans against the store.
type Service struct {
	store store.Store
	log   *zap.Logger
}

// NewService creates an aggregation service.
func NewService(st store.Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log}
}

// AggregationResult is the response shape for executed plans. ByEntity
// re-keys Results on the row id for client-side merging; rows without an id
// (the group_by=none total row, or projected-away ids) are present in
// Results but absent from ByEntity.
type AggregationResult struct {
	Collection string                  `json:"collection"`
	Count      int                     `json:"count"`
	Results    []pipeline.Doc          `json:"results"`
	ByEntity   map[string]pipeline.Doc `json:"by_entity,omitempty"`
}

// RunAggregation validates and executes a plan, returning ordered rows plus
// the entity-keyed view. No partial results: any failure aborts the call.
func (s *Service) RunAggregation(ctx context.Context, collection string, p pipeline.Pipeline) (*AggregationResult, error) {
	if err := p.Validate(); err != nil {
		metrics.Aggregations.WithLabelValues(collection, "invalid").Inc()
		s.log.Warn("rejecting invalid plan", zap.String("collection", collection), zap.Error(err))
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	rows, err := s.store.Aggregate(ctx, collection, p)
	if err != nil {
		metrics.Aggregations.WithLabelValues(collection, "error").Inc()
		s.log.Error("aggregation failed", zap.String("collection", collection), zap.Error(err))
		return nil, ErrAggregation
	}
	metrics.Aggregations.WithLabelValues(collection, "ok").Inc()

	byEntity := make(map[string]pipeline.Doc)
	for _, row := range rows {
		id, ok := row["_id"]
		if !ok || id == nil {
			continue
		}
		byEntity[IDString(id)] = row
	}

	return &AggregationResult{
		Collection: collection,
		Count:      len(rows),
		Results:    rows,
		ByEntity:   byEntity,
	}, nil
}

// Query is the structured entry point: build the plan for a
// (platform, group_by, window) request and execute it.
func (s *Service) Query(ctx context.Context, req pipeline.Request) (*AggregationResult, error) {
	collection, p, err := pipeline.Build(req)
	if err != nil {
		return nil, err
	}
	s.log.Debug("built insight pipeline",
		zap.String("collection", collection),
		zap.String("platform", req.Platform.String()),
		zap.String("group_by", req.GroupBy.String()))
	return s.RunAggregation(ctx, collection, p)
}

// IDString renders any document identity as a plain string.
func IDString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case store.DocumentID:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
