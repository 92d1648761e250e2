package handlers

import (
	"fmt"
	"net/http"

	"churn-prediction-api/logger"
	"churn-prediction-api/middleware"
	"churn-prediction-api/services"
	"churn-prediction-api/store"

	"github.com/gin-gonic/gin"
)

type ClearHandler struct {
	store *store.PredictionStore
	cache *services.CacheService
	log   *logger.Logger
}

func NewClearHandler(s *store.PredictionStore, cache *services.CacheService, log *logger.Logger) *ClearHandler {
	return &ClearHandler{store: s, cache: cache, log: log}
}

func (h *ClearHandler) ClearAll(c *gin.Context) {
	n, err := h.store.DeleteAll(c.Request.Context())
	if err != nil {
		respondQueryError(c, h.log, err)
		return
	}
	if err := h.cache.DeletePrefix(c.Request.Context(), services.AnalyticsKeyPrefix); err != nil {
		h.log.Warn("analytics cache invalidation failed", "error", err)
	}

	var by string
	if claims := middleware.ClaimsFrom(c); claims != nil {
		by = claims.Username
	}
	h.log.Info("prediction history cleared", "deleted", n, "by", by)

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Successfully deleted %d records.", n),
		"deleted": n,
	})
}
