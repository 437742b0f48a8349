// Package adpulse aggregates advertising and commerce metrics across
// Meta Ads, Google Ads, and Shopify.
//
// Usage:
//
//	import "github.com/adpulse-org/adpulse/pipeline"
//
//	collection, plan, err := pipeline.Build(pipeline.Request{
//	    UserID:    "u1",
//	    AccountID: "act_123",
//	    StartDate: "2024-01-01",
//	    EndDate:   "2024-01-31",
//	    GroupBy:   pipeline.GroupCampaign,
//	    Platform:  pipeline.Meta,
//	})
//
// The pipeline package builds deterministic aggregation plans over daily
// insight records; the insights package executes them against a store and
// owns the Shopify order rollup; the translator package turns natural
// language questions into validated plans through a language model.
//
// Plan execution is local and read-only. Only the translator package calls
// an external service.
package adpulse
