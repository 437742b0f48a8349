package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// PIPELINE BUILDER
// ============================================================================

func metaRequest(g GroupBy) Request {
	return Request{
		UserID:    "u1",
		AccountID: "act_1",
		StartDate: "2024-01-01",
		EndDate:   "2024-01-31",
		GroupBy:   g,
		Platform:  Meta,
	}
}

func metaDoc(campaign, date string, clicks, impressions any, spend any) Doc {
	return Doc{
		"user_id":       "u1",
		"ad_account_id": "act_1",
		"campaign_id":   campaign,
		"campaign_name": "Campaign " + campaign,
		"date_start":    date,
		"clicks":        clicks,
		"impressions":   impressions,
		"spend":         spend,
	}
}

func TestBuildRejectsBadRequests(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing user", func(r *Request) { r.UserID = "" }},
		{"missing account", func(r *Request) { r.AccountID = "" }},
		{"bad date", func(r *Request) { r.StartDate = "Jan 1" }},
		{"inverted window", func(r *Request) { r.StartDate, r.EndDate = r.EndDate, r.StartDate }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := metaRequest(GroupCampaign)
			tc.mutate(&req)
			_, _, err := Build(req)
			assert.Error(t, err)
		})
	}
}

func TestBuildRejectsShopify(t *testing.T) {
	req := metaRequest(GroupCampaign)
	req.Platform = Shopify
	_, _, err := Build(req)
	require.Error(t, err)
}

func TestBuildCollectionPerGrouping(t *testing.T) {
	cases := []struct {
		platform Platform
		groupBy  GroupBy
		want     string
	}{
		{Meta, GroupNone, MetaCampaignCollection},
		{Meta, GroupDate, MetaCampaignCollection},
		{Meta, GroupCampaign, MetaCampaignCollection},
		{Meta, GroupAdset, MetaAdsetCollection},
		{Meta, GroupAd, MetaAdCollection},
		{Google, GroupCampaign, GoogleAdsCollection},
		{Google, GroupAdset, GoogleAdsCollection},
	}
	for _, tc := range cases {
		req := metaRequest(tc.groupBy)
		req.Platform = tc.platform
		collection, _, err := Build(req)
		require.NoError(t, err)
		assert.Equal(t, tc.want, collection)
	}
}

func TestMetaCampaignGrouping(t *testing.T) {
	_, p, err := Build(metaRequest(GroupCampaign))
	require.NoError(t, err)

	rows, err := p.Run([]Doc{
		metaDoc("c1", "2024-01-02", "40", "200", "5.00"),
		metaDoc("c1", "2024-01-03", "20", "100", "7.50"),
		metaDoc("c2", "2024-01-02", "10", "1000", "50.00"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Sorted by total_spend descending: c2 first.
	assert.Equal(t, "c2", rows[0]["_id"])
	assert.Equal(t, "Campaign c2", rows[0]["name"])

	c1 := rows[1]
	assert.Equal(t, "c1", c1["_id"])
	assert.Equal(t, 12.5, c1["total_spend"])
	assert.Equal(t, 60.0, c1["total_clicks"])
	assert.Equal(t, 300.0, c1["total_impressions"])
	assert.Equal(t, int64(2), c1["record_count"])
	assert.InDelta(t, 20.0, c1["ctr"].(float64), 1e-9) // 60/300*100
	assert.InDelta(t, 12.5/300*1000, c1["cpm"].(float64), 1e-9)
	assert.InDelta(t, 12.5/60, c1["cpc"].(float64), 1e-9)
}

func TestZeroImpressionsYieldZeroDerivedMetrics(t *testing.T) {
	_, p, err := Build(metaRequest(GroupCampaign))
	require.NoError(t, err)

	rows, err := p.Run([]Doc{
		metaDoc("c1", "2024-01-02", "0", "0", "9.99"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(0), rows[0]["ctr"])
	assert.Equal(t, float64(0), rows[0]["cpm"])
	assert.Equal(t, float64(0), rows[0]["cpc"])
}

func TestMissingMetricsAggregateAsZero(t *testing.T) {
	_, p, err := Build(metaRequest(GroupCampaign))
	require.NoError(t, err)

	doc := metaDoc("c1", "2024-01-02", nil, nil, nil)
	delete(doc, "clicks")
	delete(doc, "spend")

	rows, err := p.Run([]Doc{doc})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.0, rows[0]["total_spend"])
	assert.Equal(t, 0.0, rows[0]["total_clicks"])
	assert.Equal(t, int64(1), rows[0]["record_count"])
}

func TestGarbageMetricFailsRun(t *testing.T) {
	_, p, err := Build(metaRequest(GroupCampaign))
	require.NoError(t, err)

	_, err = p.Run([]Doc{
		metaDoc("c1", "2024-01-02", "ten", "100", "1.00"),
	})
	assert.Error(t, err)
}

func TestGoogleMicrosStringAndNumber(t *testing.T) {
	req := metaRequest(GroupCampaign)
	req.Platform = Google
	req.AccountID = "cust_1"
	_, p, err := Build(req)
	require.NoError(t, err)

	base := Doc{
		"user_id":       "u1",
		"customer_id":   "cust_1",
		"platform":      "google",
		"campaign_id":   "g1",
		"campaign_name": "Brand",
		"date":          "2024-01-05",
		"clicks":        "10",
		"impressions":   "100",
		"conversions":   "2",
	}
	asString := copyWith(base, "cost_micros", "20000000")
	asNumber := copyWith(base, "cost_micros", float64(20000000))

	rows, err := p.Run([]Doc{asString, asNumber})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 40.0, rows[0]["total_spend"].(float64), 1e-9) // 20 + 20
	assert.Equal(t, 4.0, rows[0]["conversions"])
}

func TestGoogleScopedToPlatformTag(t *testing.T) {
	req := metaRequest(GroupNone)
	req.Platform = Google
	req.AccountID = "cust_1"
	_, p, err := Build(req)
	require.NoError(t, err)

	tagged := Doc{
		"user_id": "u1", "customer_id": "cust_1", "platform": "google",
		"date": "2024-01-05", "clicks": "1", "impressions": "10", "cost_micros": "1000000",
	}
	untagged := copyWith(tagged, "platform", "other")

	rows, err := p.Run([]Doc{tagged, untagged})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["record_count"])
}

func TestDateGroupingSortsAscending(t *testing.T) {
	_, p, err := Build(metaRequest(GroupDate))
	require.NoError(t, err)

	rows, err := p.Run([]Doc{
		metaDoc("c1", "2024-01-09", "1", "10", "1.00"),
		metaDoc("c1", "2024-01-02", "1", "10", "1.00"),
		metaDoc("c2", "2024-01-02", "1", "10", "1.00"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-02", rows[0]["_id"])
	assert.Equal(t, int64(2), rows[0]["record_count"])
	assert.Equal(t, "2024-01-09", rows[1]["_id"])
	// Date and total groupings carry no entity name.
	_, hasName := rows[0]["name"]
	assert.False(t, hasName)
}

func TestWindowFilterScopesUserAccountAndDates(t *testing.T) {
	f := WindowFilter(Meta, "u1", "act_1", "2024-01-01", "2024-01-31")

	assert.True(t, f.Matches(metaDoc("c1", "2024-01-15", "1", "1", "1")))
	assert.False(t, f.Matches(copyWith(metaDoc("c1", "2024-01-15", "1", "1", "1"), "user_id", "u2")))
	assert.False(t, f.Matches(metaDoc("c1", "2024-02-15", "1", "1", "1")))
}

func copyWith(doc Doc, key string, val any) Doc {
	out := make(Doc, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out[key] = val
	return out
}
