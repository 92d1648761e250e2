package handlers

import (
	"net/http"
	"strings"
	"time"

	"churn-prediction-api/logger"
	"churn-prediction-api/models"
	"churn-prediction-api/store"

	"github.com/gin-gonic/gin"
)

type HistoryHandler struct {
	store *store.PredictionStore
	log   *logger.Logger
}

func NewHistoryHandler(s *store.PredictionStore, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{store: s, log: log}
}

func (h *HistoryHandler) List(c *gin.Context) {
	p := ParsePage(c)

	rows, hasMore, err := h.store.List(c.Request.Context(), p.Limit, p.Before)
	if err != nil {
		respondQueryError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, NewPageResponse(rows, hasMore, func(p models.Prediction) time.Time { return p.CreatedAt }))
}

func (h *HistoryHandler) ByCustomer(c *gin.Context) {
	id := strings.TrimSpace(c.Param("customer_id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer_id is required"})
		return
	}
	rows, err := h.store.ByCustomer(c.Request.Context(), id)
	if err != nil {
		respondQueryError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}
