package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adpulse-org/adpulse/insights"
	"github.com/adpulse-org/adpulse/pipeline"
	"github.com/adpulse-org/adpulse/translator"
)

// ============================================================================
// HTTP HANDLERS — request shaping over the domain services
// ============================================================================
// Handlers validate and decode, call the service layer, and wrap results in
// the response envelope. Domain rules live in the services; nothing here
// touches the store directly. Identity comes from the X-User-ID header,
// standing in for whatever session middleware fronts this service.
// ============================================================================

// Handler holds the services the HTTP surface exposes.
type Handler struct {
	insights   *insights.Service
	translator *translator.Service
	syncer     *insights.Syncer
	windowDays int
	log        *zap.Logger
}

// NewHandler wires the HTTP surface over the domain services. windowDays is
// the sync window applied when a request omits its dates.
func NewHandler(ins *insights.Service, tr *translator.Service, sync *insights.Syncer, windowDays int, log *zap.Logger) *Handler {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &Handler{insights: ins, translator: tr, syncer: sync, windowDays: windowDays, log: log}
}

func userID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		respondError(c, http.StatusBadRequest, CodeBadRequest, "missing X-User-ID header")
		return "", false
	}
	return id, true
}

type aggregateRequest struct {
	Platform  string `json:"platform" binding:"required"`
	AccountID string `json:"account_id" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	GroupBy   string `json:"group_by"`
}

// Aggregate handles POST /api/v1/insights/aggregate.
func (h *Handler) Aggregate(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var body aggregateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	platform, err := pipeline.ParsePlatform(body.Platform)
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	groupBy, err := pipeline.ParseGroupBy(body.GroupBy)
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	result, err := h.insights.Query(c.Request.Context(), pipeline.Request{
		UserID:    uid,
		AccountID: body.AccountID,
		StartDate: body.StartDate,
		EndDate:   body.EndDate,
		GroupBy:   groupBy,
		Platform:  platform,
	})
	if err != nil {
		if errors.Is(err, insights.ErrAggregation) {
			respondError(c, http.StatusInternalServerError, CodeInternal, err.Error())
			return
		}
		respondError(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	respondOK(c, result)
}

type askRequest struct {
	Platform string `json:"platform" binding:"required"`
	Question string `json:"question" binding:"required"`
}

// Ask handles POST /api/v1/insights/ask.
func (h *Handler) Ask(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var body askRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	resp, err := h.translator.Ask(c.Request.Context(), body.Platform, body.Question, uid)
	if err != nil {
		var terr *translator.TranslationError
		switch {
		case errors.Is(err, translator.ErrUnknownPlatform):
			respondError(c, http.StatusNotFound, CodeNotFound, err.Error())
		case errors.Is(err, translator.ErrEmptyQuestion):
			respondError(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		case errors.As(err, &terr):
			respondError(c, http.StatusUnprocessableEntity, CodeTranslation, terr.Error())
		default:
			respondError(c, http.StatusInternalServerError, CodeInternal, err.Error())
		}
		return
	}
	respondOK(c, resp)
}

type syncRequest struct {
	Platform  string                    `json:"platform" binding:"required"`
	AccountID string                    `json:"account_id" binding:"required"`
	StartDate string                    `json:"start_date"`
	EndDate   string                    `json:"end_date"`
	Rows      map[string][]pipeline.Doc `json:"rows"`
}

// SyncHistorical handles POST /api/v1/sync/historical. When the body carries
// rows (keyed by collection) they are stored directly; otherwise the window
// is refreshed in the background through the registered fetcher for the
// platform. Omitted dates default to the configured trailing window.
func (h *Handler) SyncHistorical(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var body syncRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	platform, err := pipeline.ParsePlatform(body.Platform)
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if platform == pipeline.Shopify {
		respondError(c, http.StatusBadRequest, CodeBadRequest, "shopify syncs through /api/v1/sync/shopify")
		return
	}

	if body.StartDate == "" && body.EndDate == "" {
		now := time.Now().UTC()
		body.EndDate = now.Format("2006-01-02")
		body.StartDate = now.AddDate(0, 0, -h.windowDays).Format("2006-01-02")
	}
	if body.StartDate == "" || body.EndDate == "" {
		respondError(c, http.StatusBadRequest, CodeBadRequest, "start_date and end_date must be set together")
		return
	}

	acct := insights.Account{UserID: uid, AccountID: body.AccountID}

	if len(body.Rows) > 0 {
		if err := h.syncer.ReplaceWindow(c.Request.Context(), platform, acct, body.StartDate, body.EndDate, body.Rows); err != nil {
			respondError(c, http.StatusInternalServerError, CodeInternal, err.Error())
			return
		}
		var rows int
		for _, docs := range body.Rows {
			rows += len(docs)
		}
		respondOK(c, gin.H{
			"platform":     platform.String(),
			"account_id":   body.AccountID,
			"window":       body.StartDate + ".." + body.EndDate,
			"rows_written": rows,
		})
		return
	}

	go func() {
		// Detached from the request context so a client disconnect does not
		// abandon a half-replaced window.
		if err := h.syncer.SyncWindow(context.Background(), platform, acct, body.StartDate, body.EndDate); err != nil {
			h.log.Error("background sync failed",
				zap.String("platform", platform.String()),
				zap.String("user_id", uid),
				zap.Error(err))
		}
	}()

	respondAccepted(c, gin.H{
		"platform":   platform.String(),
		"account_id": body.AccountID,
		"window":     body.StartDate + ".." + body.EndDate,
	})
}

type shopifySyncRequest struct {
	ShopURL string         `json:"shop_url" binding:"required"`
	Orders  []pipeline.Doc `json:"orders" binding:"required"`
}

// SyncShopify handles POST /api/v1/sync/shopify: raw orders in, per-day
// upserted insight rows out.
func (h *Handler) SyncShopify(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var body shopifySyncRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	daily := h.insights.TransformOrdersToDailyInsights(body.Orders, uid, body.ShopURL)
	if err := h.insights.UpsertDailyInsights(c.Request.Context(), daily); err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	respondOK(c, gin.H{
		"orders_received": len(body.Orders),
		"days_written":    len(daily),
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
