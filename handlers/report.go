package handlers

import (
	"errors"
	"net/http"
	"time"

	"churn-prediction-api/logger"
	"churn-prediction-api/pipeline"
	"churn-prediction-api/services"
	"churn-prediction-api/store"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	store *store.PredictionStore
	text  services.TextService
	log   *logger.Logger
}

func NewReportHandler(s *store.PredictionStore, text services.TextService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{store: s, text: text, log: log}
}

type ReportResponse struct {
	CustomerID     string    `json:"customer_id"`
	Label          string    `json:"label"`
	Probability    float64   `json:"probability"`
	Contract       string    `json:"contract"`
	Tenure         int       `json:"tenure"`
	MonthlyCharges float64   `json:"monthly_charges"`
	Explanation    string    `json:"explanation"`
	CreatedAt      time.Time `json:"created_at"`
}

// Get reports on a customer's latest prediction. Rows stored before
// explanations were persisted get one generated on demand.
func (h *ReportHandler) Get(c *gin.Context) {
	id := c.Param("customer_id")
	rec, err := h.store.Latest(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No prediction found for this customer"})
		return
	}
	if err != nil {
		respondQueryError(c, h.log, err)
		return
	}

	var explanation string
	if rec.Explanation != nil && *rec.Explanation != "" {
		explanation = *rec.Explanation
	} else {
		explanation = h.text.ExplainSingle(c.Request.Context(), map[string]any{
			"customer_id":     id,
			"tenure":          rec.Tenure,
			"contract":        rec.Contract,
			"monthly_charges": rec.MonthlyCharges,
		}, rec.Probability)
	}

	c.JSON(http.StatusOK, ReportResponse{
		CustomerID:     id,
		Label:          rec.Label,
		Probability:    pipeline.Round(rec.Probability, 3),
		Contract:       rec.Contract,
		Tenure:         rec.Tenure,
		MonthlyCharges: rec.MonthlyCharges,
		Explanation:    explanation,
		CreatedAt:      rec.CreatedAt,
	})
}
