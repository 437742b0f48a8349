package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adpulse-org/adpulse/insights"
	"github.com/adpulse-org/adpulse/pipeline"
	"github.com/adpulse-org/adpulse/schema"
	"github.com/adpulse-org/adpulse/store"
	"github.com/adpulse-org/adpulse/translator"
)

// ============================================================================
// HTTP SURFACE
// ============================================================================

type cannedGenerator struct {
	response string
}

func (g cannedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.response, nil
}

func newTestRouter(t *testing.T, gen translator.Generator) (*gin.Engine, *store.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemory()
	log := zap.NewNop()
	ins := insights.NewService(st, log)
	syncer := insights.NewSyncer(st, nil, log)
	tr := translator.NewService(schema.NewRegistry(), gen, ins, log)
	return NewRouter(NewHandler(ins, tr, syncer, 30, log), log), st
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, cannedGenerator{})
	w := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, cannedGenerator{})
	w := doJSON(t, r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_")
}

func TestMissingUserHeader(t *testing.T) {
	r, _ := newTestRouter(t, cannedGenerator{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/insights/aggregate", "", gin.H{
		"platform": "meta", "account_id": "act_1",
		"start_date": "2024-01-01", "end_date": "2024-01-31",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, CodeBadRequest, env.Error.Code)
}

func TestAggregateRejectsBadPlatform(t *testing.T) {
	r, _ := newTestRouter(t, cannedGenerator{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/insights/aggregate", "u1", gin.H{
		"platform": "tiktok", "account_id": "act_1",
		"start_date": "2024-01-01", "end_date": "2024-01-31",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAggregateRejectsBadGroupBy(t *testing.T) {
	r, _ := newTestRouter(t, cannedGenerator{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/insights/aggregate", "u1", gin.H{
		"platform": "meta", "account_id": "act_1", "group_by": "keyword",
		"start_date": "2024-01-01", "end_date": "2024-01-31",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAggregateEndToEnd(t *testing.T) {
	r, st := newTestRouter(t, cannedGenerator{})
	require.NoError(t, st.InsertMany(context.Background(), pipeline.MetaCampaignCollection, []pipeline.Doc{
		{
			"user_id": "u1", "ad_account_id": "act_1",
			"campaign_id": "c1", "campaign_name": "Spring",
			"date_start": "2024-01-10",
			"clicks":     "60", "impressions": "300", "spend": "12.50",
		},
	}))

	w := doJSON(t, r, http.MethodPost, "/api/v1/insights/aggregate", "u1", gin.H{
		"platform": "meta", "account_id": "act_1", "group_by": "campaign",
		"start_date": "2024-01-01", "end_date": "2024-01-31",
	})
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	require.True(t, env.Success)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var result insights.AggregationResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Equal(t, 1, result.Count)
	assert.InDelta(t, 20.0, result.Results[0]["ctr"].(float64), 1e-9)
}

func TestAskUnknownPlatformIs404(t *testing.T) {
	r, _ := newTestRouter(t, cannedGenerator{response: "[]"})
	w := doJSON(t, r, http.MethodPost, "/api/v1/insights/ask", "u1", gin.H{
		"platform": "tiktok", "question": "how are my ads?",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, decodeEnvelope(t, w).Error.Code)
}

func TestAskUntranslatableIs422(t *testing.T) {
	r, _ := newTestRouter(t, cannedGenerator{response: "I'd rather not."})
	w := doJSON(t, r, http.MethodPost, "/api/v1/insights/ask", "u1", gin.H{
		"platform": "meta", "question": "clicks per campaign?",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, CodeTranslation, decodeEnvelope(t, w).Error.Code)
}

func TestAskOutOfDomainReturnsEmptyResults(t *testing.T) {
	r, _ := newTestRouter(t, cannedGenerator{response: "[]"})
	w := doJSON(t, r, http.MethodPost, "/api/v1/insights/ask", "u1", gin.H{
		"platform": "meta", "question": "what is the meaning of life?",
	})
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	require.True(t, env.Success)
	data, _ := json.Marshal(env.Data)
	var resp translator.Response
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Empty(t, resp.Results)
}

func TestSyncHistoricalWithRows(t *testing.T) {
	r, st := newTestRouter(t, cannedGenerator{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/sync/historical", "u1", gin.H{
		"platform": "meta", "account_id": "act_1",
		"start_date": "2024-01-01", "end_date": "2024-01-31",
		"rows": gin.H{
			pipeline.MetaCampaignCollection: []gin.H{
				{
					"user_id": "u1", "ad_account_id": "act_1",
					"campaign_id": "c1", "date_start": "2024-01-10",
					"clicks": "1", "impressions": "10", "spend": "0.50",
				},
			},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, st.Count(pipeline.MetaCampaignCollection))
}

func TestSyncHistoricalDefaultsWindow(t *testing.T) {
	r, st := newTestRouter(t, cannedGenerator{})
	today := time.Now().UTC().Format("2006-01-02")
	w := doJSON(t, r, http.MethodPost, "/api/v1/sync/historical", "u1", gin.H{
		"platform": "meta", "account_id": "act_1",
		"rows": gin.H{
			pipeline.MetaCampaignCollection: []gin.H{
				{
					"user_id": "u1", "ad_account_id": "act_1",
					"campaign_id": "c1", "date_start": today,
					"clicks": "1", "impressions": "10", "spend": "0.50",
				},
			},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, st.Count(pipeline.MetaCampaignCollection))
}

func TestSyncHistoricalRejectsShopify(t *testing.T) {
	r, _ := newTestRouter(t, cannedGenerator{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/sync/historical", "u1", gin.H{
		"platform": "shopify", "account_id": "shop.example.com",
		"start_date": "2024-01-01", "end_date": "2024-01-31",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncShopifyEndToEnd(t *testing.T) {
	r, st := newTestRouter(t, cannedGenerator{})
	w := doJSON(t, r, http.MethodPost, "/api/v1/sync/shopify", "u1", gin.H{
		"shop_url": "shop.example.com",
		"orders": []gin.H{
			{"created_at": "2024-03-01T09:00:00Z", "total_price": "10.00", "line_items": []gin.H{{}}},
			{"created_at": "2024-03-01T12:00:00Z", "total_price": "15.00", "line_items": []gin.H{{}, {}}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, st.Count(pipeline.ShopifyCollection))

	docs, err := st.Find(context.Background(), pipeline.ShopifyCollection, nil)
	require.NoError(t, err)
	assert.Equal(t, 25.0, docs[0]["total_revenue"])
}
