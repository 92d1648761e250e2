package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"churn-prediction-api/logger"
	"churn-prediction-api/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PredictionsWebSocket streams every stored prediction, and every risk
// escalation alert, to the client as it is published. Browsers cannot set
// headers on the handshake, so the token travels in ?token=.
func PredictionsWebSocket(cache *services.CacheService, authService *services.AuthService, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token query parameter"})
			return
		}
		if _, err := authService.ValidateToken(tokenStr); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		if !cache.Available() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live feed unavailable"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// read pump: only used to notice the client going away
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		pubsub := cache.Subscribe(ctx, services.ChannelPredictions, services.ChannelAlerts)
		defer pubsub.Close()
		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				err := conn.WriteJSON(gin.H{
					"type": liveMessageType(msg.Channel),
					"data": json.RawMessage(msg.Payload),
				})
				if err != nil {
					log.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}

func liveMessageType(channel string) string {
	if channel == services.ChannelAlerts {
		return "alert"
	}
	return "prediction"
}
