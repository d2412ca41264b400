package http

import (
	"context"
	"net/http"
	"time"

	"caseboard-service/internal/app"
	"caseboard-service/internal/domain"
	"caseboard-service/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Presence tracks connected viewers per scope. Optional.
type Presence interface {
	// Heartbeat marks conn as connected and returns the scope's viewer count.
	Heartbeat(ctx context.Context, scope domain.Scope, conn string) (int64, error)
	HeartbeatEvery() time.Duration
	Leave(ctx context.Context, scope domain.Scope, conn string) error
	Viewers(ctx context.Context, scope domain.Scope) (int64, error)
}

// Services are the use cases exposed over HTTP.
type Services struct {
	Setup      *app.Setup
	Controller *app.Controller
	Ledger     *app.Ledger
	Reader     realtime.Source
	Sync       *realtime.Service
	Presence   Presence
}

// NewRouter builds the gin engine serving the REST API and the websocket endpoint.
func NewRouter(svc Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := &API{svc: svc}
	cases := r.Group("/api/cases/:case")
	cases.GET("/config", api.getConfig)
	cases.PUT("/config", api.putConfig)

	sessions := cases.Group("/sessions/:session")
	sessions.GET("/state", api.getState)
	sessions.POST("/:action", api.transition)
	sessions.GET("/name", api.getName)
	sessions.PUT("/name", api.putName)
	sessions.DELETE("/name", api.deleteName)
	sessions.GET("/views/:role", api.getView)

	r.POST("/api/responses", api.submit)
	r.GET("/api/responses", api.listResponses)

	ws := NewWSHandler(svc)
	r.GET("/ws", gin.WrapF(ws.ServeWS))
	return r
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	}
}
