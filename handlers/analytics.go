package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"churn-prediction-api/logger"
	"churn-prediction-api/services"
	"churn-prediction-api/store"

	"github.com/gin-gonic/gin"
)

const topRiskLimit = 10

type AnalyticsHandler struct {
	store *store.PredictionStore
	cache *services.CacheService
	log   *logger.Logger
}

func NewAnalyticsHandler(s *store.PredictionStore, cache *services.CacheService, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{store: s, cache: cache, log: log}
}

func (h *AnalyticsHandler) Summary(c *gin.Context) {
	h.serveCached(c, "summary", func(ctx context.Context) (any, error) {
		return h.store.Summary(ctx)
	})
}

func (h *AnalyticsHandler) Distribution(c *gin.Context) {
	h.serveCached(c, "probability_distribution", func(ctx context.Context) (any, error) {
		return h.store.Distribution(ctx)
	})
}

func (h *AnalyticsHandler) ByContract(c *gin.Context) {
	h.serveCached(c, "churn_by_contract", func(ctx context.Context) (any, error) {
		return h.store.ByContract(ctx)
	})
}

func (h *AnalyticsHandler) TopRisk(c *gin.Context) {
	h.serveCached(c, "top_risk", func(ctx context.Context) (any, error) {
		return h.store.TopRisk(ctx, topRiskLimit)
	})
}

// serveCached answers from redis when possible, otherwise runs load and
// caches its result in the background.
func (h *AnalyticsHandler) serveCached(c *gin.Context, name string, load func(context.Context) (any, error)) {
	key := services.AnalyticsKey(name)

	var cached json.RawMessage
	if ok, err := h.cache.Get(c.Request.Context(), key, &cached); err == nil && ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}

	resp, err := load(c.Request.Context())
	if err != nil {
		respondQueryError(c, h.log, err)
		return
	}
	go h.cache.Set(context.Background(), key, resp, services.AnalyticsTTL)

	c.JSON(http.StatusOK, resp)
}
