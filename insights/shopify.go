package insights

import (
	"context"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/adpulse-org/adpulse/pipeline"
)

// ============================================================================
// SHOPIFY DAILY AGGREGATOR — raw orders → one insight per calendar day
// ============================================================================
// Unlike the Meta/Google pipeline, a garbage order total is skipped with a
// log line instead of failing the run, and persistence is an upsert per
// (user, platform, date), not a window replace. Both asymmetries are
// intentional and load-bearing; do not unify them with the ads path without
// re-checking what downstream sync jobs expect.
// ============================================================================

// DailyInsight is one day of Shopify sales for one shop.
type DailyInsight struct {
	UserID        string  `json:"user_id"`
	ShopURL       string  `json:"shop_url"`
	Date          string  `json:"date"` // YYYY-MM-DD
	TotalRevenue  float64 `json:"total_revenue"`
	OrderCount    int64   `json:"order_count"`
	TotalItems    int64   `json:"total_items"`
	AvgOrderValue float64 `json:"avg_order_value"`
}

// TransformOrdersToDailyInsights groups raw Shopify orders by calendar day
// and accumulates revenue, order count, and item count. Orders whose
// creation timestamp cannot be read are skipped and logged.
func (s *Service) TransformOrdersToDailyInsights(orders []pipeline.Doc, userID, shopURL string) []DailyInsight {
	byDate := make(map[string]*DailyInsight)

	for i, order := range orders {
		date, ok := orderDate(order["created_at"])
		if !ok {
			s.log.Warn("skipping order with unreadable created_at",
				zap.Int("index", i), zap.String("shop", shopURL))
			continue
		}

		ins, ok := byDate[date]
		if !ok {
			ins = &DailyInsight{UserID: userID, ShopURL: shopURL, Date: date}
			byDate[date] = ins
		}

		price, ok := orderTotal(order["total_price"])
		if !ok {
			s.log.Warn("order total unparseable, counting order with zero revenue",
				zap.Int("index", i), zap.String("shop", shopURL))
			price = 0
		}
		ins.TotalRevenue += price
		ins.OrderCount++
		if items, ok := order["line_items"].([]any); ok {
			ins.TotalItems += int64(len(items))
		}
	}

	out := make([]DailyInsight, 0, len(byDate))
	for _, ins := range byDate {
		if ins.OrderCount > 0 {
			ins.AvgOrderValue = ins.TotalRevenue / float64(ins.OrderCount)
		}
		out = append(out, *ins)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// UpsertDailyInsights persists insights one day at a time, keyed on
// (user, platform, date). Re-running a window updates the same documents.
func (s *Service) UpsertDailyInsights(ctx context.Context, insights []DailyInsight) error {
	for _, ins := range insights {
		filter := pipeline.MatchStage{
			"user_id":  pipeline.EqC(ins.UserID),
			"platform": pipeline.EqC("shopify"),
			"date":     pipeline.EqC(ins.Date),
		}
		doc := pipeline.Doc{
			"user_id":         ins.UserID,
			"platform":        "shopify",
			"shop_url":        ins.ShopURL,
			"date":            ins.Date,
			"total_revenue":   ins.TotalRevenue,
			"order_count":     ins.OrderCount,
			"total_items":     ins.TotalItems,
			"avg_order_value": ins.AvgOrderValue,
		}
		if err := s.store.Upsert(ctx, pipeline.ShopifyCollection, filter, doc); err != nil {
			return err
		}
	}
	return nil
}

// orderDate extracts the calendar day from an order creation timestamp,
// accepting an RFC 3339 string (Shopify's trailing-Z form) or a typed time.
func orderDate(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return "", false
		}
		return parsed.Format("2006-01-02"), true
	case time.Time:
		return t.Format("2006-01-02"), true
	}
	return "", false
}

// orderTotal reads an order total that may be a numeric string or a number.
func orderTotal(v any) (float64, bool) {
	switch p := v.(type) {
	case string:
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return p, true
	case int:
		return float64(p), true
	case int64:
		return float64(p), true
	}
	return 0, false
}
