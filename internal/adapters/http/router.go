package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/salza80/jitsi-meet/internal/adapters/signal"
	"github.com/salza80/jitsi-meet/internal/app/orch"
	"github.com/salza80/jitsi-meet/internal/config"
)

const clientTokenKey = "client_token"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware keeps a per-browser token in the session cookie.
// Rate limiting is keyed by it.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get("ct").(string)
		if token == "" {
			token = genClientToken()
			session.Set("ct", token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.EventsWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("FilmstripSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/snapshot", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Sink.Snapshot())
	})
	api.GET("/layout", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Sink.Snapshot().Layout)
	})
	api.GET("/thumbnails", func(c *gin.Context) {
		c.JSON(http.StatusOK, ctl.Sink.Snapshot().Thumbnails)
	})
	api.GET("/large-video", func(c *gin.Context) {
		sel := ctl.Sink.Snapshot().LargeVideo
		if sel == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no large video"})
			return
		}
		c.JSON(http.StatusOK, sel)
	})

	api.POST("/events", func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		ev, err := ctl.Ingest(c.GetString(clientTokenKey), body)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": ev.Kind()})
	})

	api.GET("/ws/events", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).Msg("ws events endpoint hit")
		ctl.HandleEvents(ctx, c)
	})

	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, signal.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, orch.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, signal.ErrBadPayload), errors.Is(err, signal.ErrUnknownEvent):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
