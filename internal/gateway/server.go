package gateway

import (
	"net/http"
	"time"

	"github.com/danmuck/wabridge/internal/auth"
	"github.com/danmuck/wabridge/internal/fanout"
	"github.com/danmuck/wabridge/internal/observability"
	"github.com/danmuck/wabridge/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Server binds the registry and hub to a gin router.
type Server struct {
	ID      string
	Started time.Time

	registry        *session.Registry
	hub             *fanout.Hub
	validator       auth.Validator
	defaultIdentity string
	maxUpload       int64
	router          *gin.Engine
}

func NewServer(cfg ServiceConfig, registry *session.Registry, hub *fanout.Hub) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, "/health", "/ready", "/metrics", "/status/:identity"))
	r.Use(observability.RequestMetricsMiddleware(cfg.NodeID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultServiceConfig().MaxUploadBytes
	}
	r.MaxMultipartMemory = maxUpload + multipartOverhead

	s := &Server{
		ID:              cfg.NodeID,
		Started:         time.Now(),
		registry:        registry,
		hub:             hub,
		validator:       auth.FromConfig(cfg.APIToken),
		defaultIdentity: cfg.DefaultIdentity,
		maxUpload:       maxUpload,
		router:          r,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) NodeID() string {
	return s.ID
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// requireToken rejects requests without the configured API token. It is a
// no-op when no token is configured.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.Check(s.validator, c.Request); err != nil {
			log.Warn().
				Str("path", c.Request.URL.Path).
				Str("client_ip", c.ClientIP()).
				Msg("http_unauthorized")
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Detail: err.Error()})
			return
		}
		c.Next()
	}
}
