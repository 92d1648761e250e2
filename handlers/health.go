package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Readiness reports whether the classifier has been loaded.
type Readiness interface {
	Ready() bool
}

func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Customer Churn Prediction API"})
}

func Health(model Readiness) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "UP",
			"message":      "Churn Prediction API is running",
			"model_loaded": model != nil && model.Ready(),
		})
	}
}
