package handlers

import (
	"errors"
	"net/http"

	"churn-prediction-api/logger"
	"churn-prediction-api/middleware"
	"churn-prediction-api/pipeline"
	"churn-prediction-api/services"

	"github.com/gin-gonic/gin"
)

const (
	msgUploadCSV   = "Please upload a CSV file"
	msgModel       = "model unavailable"
	msgSave        = "failed to save predictions"
	msgPredict     = "prediction failed"
	msgQueryFailed = "database query failed"
)

// respondPredictionError maps pipeline and service errors onto HTTP
// responses. Only 5xx causes are logged; clients never see internal detail.
func respondPredictionError(c *gin.Context, log *logger.Logger, err error) {
	var verr *pipeline.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
		return
	case errors.Is(err, pipeline.ErrModelUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgModel})
	case errors.Is(err, services.ErrPersistence):
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgSave})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgPredict})
	}
	_ = c.Error(err)
	log.Error("prediction request failed", "request_id", middleware.RequestIDFrom(c), "error", err)
}

func respondQueryError(c *gin.Context, log *logger.Logger, err error) {
	_ = c.Error(err)
	log.Error("query failed", "request_id", middleware.RequestIDFrom(c), "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msgQueryFailed})
}
