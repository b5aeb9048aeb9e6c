package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartrecipe/internal/config"
	"smartrecipe/internal/logging"
)

const sessionIDKey = "session_id"

// SessionMiddleware makes sure every request carries a session id cookie.
// Unknown or malformed values are replaced with a fresh UUID.
func SessionMiddleware(cookieName string, ttl time.Duration) gin.HandlerFunc {
	maxAge := int(ttl / time.Second)
	return func(c *gin.Context) {
		id, err := c.Cookie(cookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, id, maxAge, "/", "", false, true)
		}
		c.Set(sessionIDKey, id)
		c.Next()
	}
}

// SessionID returns the id assigned by SessionMiddleware.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// NewRouter wires the handlers, middleware and operational endpoints.
func NewRouter(h *Handler, server config.ServerConfig, sessions config.SessionConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware())

	// Configure CORS middleware
	corsConfig := cors.Config{
		AllowOrigins:     server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", logging.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	recipes := r.Group("/recipes", SessionMiddleware(sessions.CookieName, sessions.TTL))
	recipes.GET("", h.GetRecipes)
	recipes.POST("", h.PostRecipes)
	recipes.GET("/:id", h.GetRecipe)

	return r
}
