// Package schema holds the static registry of queryable insight views.
// Each entry maps a platform view key to its backing collection, field list,
// description, and example values. The registry exists to feed the NL
// translator's prompt; it never validates query output beyond that.
package schema

import (
	"sort"

	"github.com/adpulse-org/adpulse/pipeline"
)

// Field describes one queryable field of a view.
type Field struct {
	Name        string
	Description string
	Examples    []string
}

// Descriptor describes one queryable view. Immutable at runtime.
type Descriptor struct {
	Key         string
	Collection  string
	Platform    pipeline.Platform
	Description string
	Fields      []Field
}

// FieldNames returns the field names in declaration order.
func (d Descriptor) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Registry is the read-only view catalog. Load once at process start.
type Registry struct {
	views map[string]Descriptor
}

// Lookup resolves a platform view key.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	d, ok := r.views[key]
	return d, ok
}

// Keys returns the registered view keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.views))
	for k := range r.views {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewRegistry builds the static view catalog.
func NewRegistry() *Registry {
	views := []Descriptor{
		{
			Key:         "meta",
			Collection:  pipeline.MetaCampaignCollection,
			Platform:    pipeline.Meta,
			Description: "Daily Meta Ads campaign performance. One document per campaign per day.",
			Fields: []Field{
				{Name: "user_id", Description: "owning user"},
				{Name: "ad_account_id", Description: "Meta ad account", Examples: []string{"act_1089427631"}},
				{Name: "campaign_id", Examples: []string{"238471120945"}},
				{Name: "campaign_name", Examples: []string{"Summer Sale - Prospecting"}},
				{Name: "date_start", Description: "day the metrics belong to, YYYY-MM-DD", Examples: []string{"2025-06-14"}},
				{Name: "impressions", Description: "numeric string", Examples: []string{"10544"}},
				{Name: "clicks", Description: "numeric string", Examples: []string{"312"}},
				{Name: "spend", Description: "currency units as a numeric string", Examples: []string{"86.42"}},
			},
		},
		{
			Key:         "meta_adsets",
			Collection:  pipeline.MetaAdsetCollection,
			Platform:    pipeline.Meta,
			Description: "Daily Meta Ads ad-set performance. Ad sets belong to campaigns.",
			Fields: []Field{
				{Name: "user_id"},
				{Name: "ad_account_id"},
				{Name: "campaign_id", Description: "parent campaign"},
				{Name: "adset_id", Examples: []string{"238471121060"}},
				{Name: "adset_name", Examples: []string{"Lookalike 1% US"}},
				{Name: "date_start", Description: "YYYY-MM-DD"},
				{Name: "impressions"},
				{Name: "clicks"},
				{Name: "spend"},
			},
		},
		{
			Key:         "meta_ads",
			Collection:  pipeline.MetaAdCollection,
			Platform:    pipeline.Meta,
			Description: "Daily Meta Ads ad-level performance. Ads belong to ad sets.",
			Fields: []Field{
				{Name: "user_id"},
				{Name: "ad_account_id"},
				{Name: "campaign_id", Description: "parent campaign"},
				{Name: "adset_id", Description: "parent ad set"},
				{Name: "ad_id", Examples: []string{"238471121173"}},
				{Name: "ad_name", Examples: []string{"Carousel v2 - blue"}},
				{Name: "date_start", Description: "YYYY-MM-DD"},
				{Name: "impressions"},
				{Name: "clicks"},
				{Name: "spend"},
			},
		},
		{
			Key:         "google_campaigns",
			Collection:  pipeline.GoogleAdsCollection,
			Platform:    pipeline.Google,
			Description: "Daily Google Ads campaign performance, tagged platform=google. Cost is stored in micros (millionths of a currency unit).",
			Fields: []Field{
				{Name: "user_id"},
				{Name: "customer_id", Description: "Google Ads customer", Examples: []string{"493-201-8876"}},
				{Name: "platform", Description: "always \"google\""},
				{Name: "campaign_id", Examples: []string{"20571034881"}},
				{Name: "campaign_name", Examples: []string{"Brand - Exact"}},
				{Name: "date", Description: "YYYY-MM-DD"},
				{Name: "impressions"},
				{Name: "clicks"},
				{Name: "cost_micros", Description: "string or number; divide by 1,000,000 for currency units", Examples: []string{"20000000"}},
				{Name: "conversions", Examples: []string{"4.5"}},
			},
		},
		{
			Key:         "shopify",
			Collection:  pipeline.ShopifyCollection,
			Platform:    pipeline.Shopify,
			Description: "Daily Shopify sales insights. One document per shop per day.",
			Fields: []Field{
				{Name: "user_id"},
				{Name: "shop_url", Examples: []string{"example-store.myshopify.com"}},
				{Name: "date", Description: "YYYY-MM-DD"},
				{Name: "total_revenue", Description: "currency units", Examples: []string{"1250.40"}},
				{Name: "order_count", Examples: []string{"18"}},
				{Name: "total_items", Examples: []string{"41"}},
				{Name: "avg_order_value", Examples: []string{"69.47"}},
			},
		},
	}

	m := make(map[string]Descriptor, len(views))
	for _, v := range views {
		m[v.Key] = v
	}
	return &Registry{views: m}
}
