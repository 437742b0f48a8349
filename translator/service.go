// Package translator turns natural-language analytics questions into
// validated read-only aggregation plans, executes them, and asks the model
// to explain the executed plan back in plain language.
package translator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/adpulse-org/adpulse/insights"
	"github.com/adpulse-org/adpulse/metrics"
	"github.com/adpulse-org/adpulse/pipeline"
	"github.com/adpulse-org/adpulse/schema"
	"github.com/adpulse-org/adpulse/store"
)

// Two independent model round-trips happen per question: plan generation,
// then explanation. The second one is best-effort only.

var (
	// ErrUnknownPlatform rejects view keys absent from the registry.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrEmptyQuestion rejects requests with no question text.
	ErrEmptyQuestion = errors.New("question text is required")
)

// maxResultRows caps the response payload. Callers needing full result sets
// page through the structured aggregation endpoint instead.
const maxResultRows = 20

const explanationFallback = "Could not generate an explanation."

// outOfDomainExplanation is returned when the model answers with an empty
// plan, which is its instructed way of saying the question is unrelated.
const outOfDomainExplanation = "This question cannot be answered from the available advertising data."

// Service wires the registry, the model, and the aggregation service.
type Service struct {
	registry  *schema.Registry
	generator Generator
	insights  *insights.Service
	log       *zap.Logger
}

// NewService creates an NL query service.
func NewService(reg *schema.Registry, gen Generator, ins *insights.Service, log *zap.Logger) *Service {
	return &Service{registry: reg, generator: gen, insights: ins, log: log}
}

// Response is the NL query envelope.
type Response struct {
	UserID           string            `json:"user_id"`
	Platform         string            `json:"platform"`
	Question         string            `json:"question"`
	Explanation      string            `json:"explanation"`
	PipelineExecuted pipeline.Pipeline `json:"pipeline_executed"`
	Results          []pipeline.Doc    `json:"results"`
}

// Ask answers one natural-language question against one platform view.
func (s *Service) Ask(ctx context.Context, platformKey, question, userID string) (*Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		metrics.NLQueries.WithLabelValues(platformKey, "bad_request").Inc()
		return nil, ErrEmptyQuestion
	}
	descriptor, ok := s.registry.Lookup(platformKey)
	if !ok {
		metrics.NLQueries.WithLabelValues(platformKey, "bad_request").Inc()
		return nil, ErrUnknownPlatform
	}

	// Round-trip 1: question → plan.
	raw, err := s.generator.Generate(ctx, BuildPlanPrompt(descriptor, question))
	if err != nil {
		metrics.ModelCalls.WithLabelValues("plan", "error").Inc()
		metrics.NLQueries.WithLabelValues(platformKey, "model_error").Inc()
		return nil, &TranslationError{Raw: "", Reason: err}
	}
	metrics.ModelCalls.WithLabelValues("plan", "ok").Inc()

	plan, err := ParsePlan(raw)
	if err != nil {
		metrics.NLQueries.WithLabelValues(platformKey, "translation_error").Inc()
		s.log.Warn("model output rejected",
			zap.String("platform", platformKey),
			zap.String("question", truncate(question, 120)),
			zap.Error(err))
		return nil, err
	}

	// The instructed fail-closed path: an empty plan means the question is
	// out of domain. No execution, no explanation call, zero results.
	if len(plan) == 0 {
		metrics.NLQueries.WithLabelValues(platformKey, "out_of_domain").Inc()
		return &Response{
			UserID:           userID,
			Platform:         platformKey,
			Question:         question,
			Explanation:      outOfDomainExplanation,
			PipelineExecuted: pipeline.Pipeline{},
			Results:          []pipeline.Doc{},
		}, nil
	}

	result, err := s.insights.RunAggregation(ctx, descriptor.Collection, plan)
	if err != nil {
		metrics.NLQueries.WithLabelValues(platformKey, "execution_error").Inc()
		return nil, err
	}

	rows := result.Results
	if len(rows) > maxResultRows {
		rows = rows[:maxResultRows]
	}
	rows = stringifyIDs(rows)

	metrics.NLQueries.WithLabelValues(platformKey, "ok").Inc()
	return &Response{
		UserID:           userID,
		Platform:         platformKey,
		Question:         question,
		Explanation:      s.explain(ctx, plan),
		PipelineExecuted: plan,
		Results:          rows,
	}, nil
}

// explain runs the second model round-trip. Failures never unwind the
// already-obtained results; they degrade to a fixed sentence.
func (s *Service) explain(ctx context.Context, plan pipeline.Pipeline) string {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return explanationFallback
	}
	text, err := s.generator.Generate(ctx, BuildExplainPrompt(string(planJSON)))
	if err != nil {
		metrics.ModelCalls.WithLabelValues("explanation", "error").Inc()
		s.log.Warn("explanation call failed, using fallback", zap.Error(err))
		return explanationFallback
	}
	metrics.ModelCalls.WithLabelValues("explanation", "ok").Inc()
	text = strings.TrimSpace(text)
	if text == "" {
		return explanationFallback
	}
	return text
}

// stringifyIDs converts opaque document identities to plain strings,
// covering both top-level and nested occurrences. Rows are rebuilt rather
// than mutated: they may alias stored documents.
func stringifyIDs(rows []pipeline.Doc) []pipeline.Doc {
	out := make([]pipeline.Doc, len(rows))
	for i, row := range rows {
		out[i] = stringifyValue(row).(pipeline.Doc)
	}
	return out
}

func stringifyValue(v any) any {
	switch t := v.(type) {
	case store.DocumentID:
		return t.String()
	case pipeline.Doc:
		next := make(pipeline.Doc, len(t))
		for k, val := range t {
			next[k] = stringifyValue(val)
		}
		return next
	case []any:
		next := make([]any, len(t))
		for i, val := range t {
			next[i] = stringifyValue(val)
		}
		return next
	default:
		return v
	}
}
