package httpapi

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/adapters/signalws"
	"github.com/careerlab/overseer/internal/app"
	"github.com/careerlab/overseer/internal/config"
	"github.com/careerlab/overseer/internal/core"
	"github.com/careerlab/overseer/internal/metrics"
)

// Deps is everything the router serves: the signaling controller plus
// the read-only views. Nothing here writes back into the core.
type Deps struct {
	Registry *app.Registry
	Relay    *app.Relay
	Ledger   core.Ledger
	Metrics  *metrics.Metrics
}

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps *Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("OverseerSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.httpapi").Str("static", cfg.StaticPath).Msg("router setup")

	ctl := signalws.NewController(deps.Registry, deps.Relay, deps.Metrics, cfg.ReadLimit)

	api := r.Group("/api")
	api.GET("/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	snap := snapshotAPI{registry: deps.Registry, ledger: deps.Ledger}
	api.GET("/status/:identity", snap.status)
	api.GET("/presence", snap.presence)
	api.GET("/attendance", snap.attendance)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
