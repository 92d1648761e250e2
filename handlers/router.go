package handlers

import (
	"churn-prediction-api/config"
	"churn-prediction-api/logger"
	"churn-prediction-api/middleware"
	"churn-prediction-api/observability"
	"churn-prediction-api/services"
	"churn-prediction-api/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

type RouterDeps struct {
	Config      *config.Config
	DB          *gorm.DB
	Store       *store.PredictionStore
	Predictions *services.PredictionService
	Text        services.TextService
	Auth        *services.AuthService
	Cache       *services.CacheService
	Model       Readiness
	Log         *logger.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(observability.TracerName),
		middleware.RequestID(),
		middleware.AccessLog(d.Log),
		middleware.SetupCORS(d.Config.CORS),
	)

	predictH := NewPredictHandler(d.Predictions, d.Config.Server.MaxUploadMB, d.Log)
	historyH := NewHistoryHandler(d.Store, d.Log)
	analyticsH := NewAnalyticsHandler(d.Store, d.Cache, d.Log)
	reportH := NewReportHandler(d.Store, d.Text, d.Log)
	clearH := NewClearHandler(d.Store, d.Cache, d.Log)
	authH := NewAuthHandler(d.DB, d.Auth)
	requireAuth := middleware.RequireAuth(d.Auth)

	r.GET("/", Root)
	r.GET("/health", Health(d.Model))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	predict := r.Group("/predict")
	predict.POST("/", predictH.Predict)
	predict.POST("/batch", predictH.PredictBatch)

	history := r.Group("/history")
	history.GET("/", historyH.List)
	history.GET("/:customer_id", historyH.ByCustomer)

	analytics := r.Group("/analytics")
	analytics.GET("/summary", analyticsH.Summary)
	analytics.GET("/probability_distribution", analyticsH.Distribution)
	analytics.GET("/churn_by_contract", analyticsH.ByContract)
	analytics.GET("/top_risk", analyticsH.TopRisk)

	r.GET("/report/:customer_id", reportH.Get)
	r.DELETE("/clear/all", requireAuth, middleware.RequireAdmin(), clearH.ClearAll)

	auth := r.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.GET("/me", requireAuth, authH.Me)
	auth.POST("/logout", authH.Logout)

	r.GET("/ws/predictions", PredictionsWebSocket(d.Cache, d.Auth, d.Log))

	return r
}
