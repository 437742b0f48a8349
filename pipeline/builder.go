package pipeline

import (
	"fmt"
	"time"
)

// ============================================================================
// PIPELINE BUILDER — deterministic plans for structured insight requests
// ============================================================================
// One (platform, group_by, date range) request becomes:
//
//	match → addFields (metric normalization) → group → project (derived
//	metrics) → sort
//
// Meta keeps one collection per grouping level; Google keeps everything in
// one collection filtered by a platform tag. Shopify has its own daily-only
// path (see the insights package) and is rejected here.
//
// Building never touches the store.
// ============================================================================

// Request describes a structured aggregation request.
type Request struct {
	UserID    string
	AccountID string // ad account id (Meta) or customer id (Google)
	StartDate string // inclusive, YYYY-MM-DD
	EndDate   string // inclusive, YYYY-MM-DD
	GroupBy   GroupBy
	Platform  Platform
}

// Collection names. Meta has one collection per entity level; Google tags
// rows by platform inside a shared collection.
const (
	MetaCampaignCollection = "meta_campaign_insights"
	MetaAdsetCollection    = "meta_adset_insights"
	MetaAdCollection       = "meta_ad_insights"
	GoogleAdsCollection    = "ad_insights"
	ShopifyCollection      = "shopify_daily_insights"
)

const dateLayout = "2006-01-02"

// platformFields is the per-variant naming strategy the builder dispatches on.
type platformFields struct {
	account     string
	date        string
	spendRaw    string
	conversions bool
}

// Build constructs the stage plan and target collection for a request.
func Build(req Request) (string, Pipeline, error) {
	if req.UserID == "" {
		return "", nil, fmt.Errorf("missing user id")
	}
	if req.AccountID == "" {
		return "", nil, fmt.Errorf("missing account id")
	}
	for _, d := range []string{req.StartDate, req.EndDate} {
		if _, err := time.Parse(dateLayout, d); err != nil {
			return "", nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", d)
		}
	}
	if req.StartDate > req.EndDate {
		return "", nil, fmt.Errorf("start date %s after end date %s", req.StartDate, req.EndDate)
	}

	var fields platformFields
	switch req.Platform {
	case Meta:
		fields = platformFields{account: "ad_account_id", date: "date_start", spendRaw: "spend"}
	case Google:
		fields = platformFields{account: "customer_id", date: "date", spendRaw: "cost_micros", conversions: true}
	case Shopify:
		return "", nil, fmt.Errorf("shopify uses the daily order aggregator, not the insight pipeline")
	default:
		return "", nil, fmt.Errorf("unknown platform %d", req.Platform)
	}

	collection, err := collectionFor(req.Platform, req.GroupBy)
	if err != nil {
		return "", nil, err
	}

	p := Pipeline{
		MatchS(WindowFilter(req.Platform, req.UserID, req.AccountID, req.StartDate, req.EndDate)),
		AddFieldsS(normalizedFields(req.Platform, fields)),
		GroupS(groupStage(req.Platform, req.GroupBy, fields)),
		ProjectS(deriveStage(req.Platform, req.GroupBy)),
		sortStage(req.GroupBy),
	}
	return collection, p, nil
}

// WindowFilter builds the match conditions scoping one (user, account, date
// window). The historical sync uses the same filter for its window-level
// delete, so a re-fetch replaces exactly what a query would read.
func WindowFilter(p Platform, userID, accountID, startDate, endDate string) MatchStage {
	accountField, dateField := "ad_account_id", "date_start"
	if p == Google {
		accountField, dateField = "customer_id", "date"
	}
	m := MatchStage{
		"user_id":    EqC(userID),
		accountField: EqC(accountID),
		dateField:    RangeC(startDate, endDate),
	}
	if p == Google {
		m["platform"] = EqC("google")
	}
	return m
}

func collectionFor(p Platform, g GroupBy) (string, error) {
	if p == Google {
		return GoogleAdsCollection, nil
	}
	// Meta: daily rows live at the finest requested level; date and total
	// requests roll up the campaign-level collection.
	switch g {
	case GroupAdset:
		return MetaAdsetCollection, nil
	case GroupAd:
		return MetaAdCollection, nil
	case GroupCampaign, GroupDate, GroupNone:
		return MetaCampaignCollection, nil
	}
	return "", fmt.Errorf("unknown group_by %d", g)
}

// normalizedFields is the Metric Normalizer embedded as an addFields stage.
// Raw vendor values may be absent, null, numeric, or numeric strings;
// absent/null becomes "0" before conversion so missing data aggregates as
// zero while garbage still fails the run.
func normalizedFields(p Platform, f platformFields) AddFieldsStage {
	out := AddFieldsStage{
		"clicks_n":      ToI64(Coalesce(F("clicks"), Lit("0"))),
		"impressions_n": ToI64(Coalesce(F("impressions"), Lit("0"))),
		"spend_n":       spendExpr(p, f),
	}
	if f.conversions {
		out["conversions_n"] = ToF64(Coalesce(F("conversions"), Lit("0")))
	}
	return out
}

func spendExpr(p Platform, f platformFields) Expr {
	if p != Google {
		return ToF64(Coalesce(F(f.spendRaw), Lit("0")))
	}
	// Google stores micros as either a native number or a string; branch on
	// runtime type, then divide by 1,000,000 after conversion.
	return If(
		IsNum(F(f.spendRaw)),
		Div(ToF64(F(f.spendRaw)), Lit(1000000)),
		Div(ToF64(Coalesce(F(f.spendRaw), Lit("0"))), Lit(1000000)),
	)
}

func groupStage(p Platform, g GroupBy, f platformFields) GroupStage {
	fields := map[string]Accumulator{
		"total_spend":       SumA(F("spend_n")),
		"total_clicks":      SumA(F("clicks_n")),
		"total_impressions": SumA(F("impressions_n")),
		"record_count":      CountA(),
	}
	if f.conversions {
		fields["total_conversions"] = SumA(F("conversions_n"))
	}

	var key *Expr
	switch g {
	case GroupNone:
		key = nil
	case GroupDate:
		k := F(f.date)
		key = &k
	default:
		idField, nameField := entityFields(p, g)
		k := F(idField)
		key = &k
		fields["name"] = FirstA(F(nameField))
	}
	return GroupStage{Key: key, Fields: fields}
}

func entityFields(p Platform, g GroupBy) (string, string) {
	switch g {
	case GroupCampaign:
		return "campaign_id", "campaign_name"
	case GroupAdset:
		if p == Google {
			return "ad_group_id", "ad_group_name"
		}
		return "adset_id", "adset_name"
	case GroupAd:
		return "ad_id", "ad_name"
	}
	return "", ""
}

// deriveStage computes the query-time metrics. Division is zero-safe in the
// evaluator, so a zero denominator yields 0 rather than an error or NaN.
func deriveStage(p Platform, g GroupBy) ProjectStage {
	out := ProjectStage{
		"total_spend":       F("total_spend"),
		"total_clicks":      F("total_clicks"),
		"total_impressions": F("total_impressions"),
		"record_count":      F("record_count"),
		"ctr":               Mul(Div(F("total_clicks"), F("total_impressions")), Lit(100)),
		"cpm":               Mul(Div(F("total_spend"), F("total_impressions")), Lit(1000)),
		"cpc":               Div(F("total_spend"), F("total_clicks")),
	}
	if p == Google {
		out["conversions"] = F("total_conversions")
	}
	if g != GroupNone && g != GroupDate {
		out["name"] = F("name")
	}
	return out
}

func sortStage(g GroupBy) Stage {
	if g == GroupDate {
		return SortS("_id", false)
	}
	return SortS("total_spend", true)
}
