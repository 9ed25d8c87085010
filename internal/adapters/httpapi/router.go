// Package httpapi is the inbound command gateway. The chat-platform
// dispatcher (out of process) calls these endpoints; they map one-to-one
// onto the core operations and expose nothing else.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nextpie/sessiond/internal/application"
)

// Deps are the core services the gateway fronts.
type Deps struct {
	Admission *application.Admission
	Accounts  *application.Accounts
	Queue     *application.Queue
	Cache     *application.Cache
	Token     string
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "synced": deps.Cache.Synced()})
	})

	h := &handlers{deps: deps}

	v1 := r.Group("/v1")
	if deps.Token != "" {
		v1.Use(requireToken(deps.Token))
	}
	v1.Use(h.requireSynced)

	v1.POST("/accounts/:id/start", h.start)
	v1.POST("/accounts/:id/stop", h.stop)
	v1.GET("/accounts/:id/credits", h.credits)
	v1.POST("/accounts/:id/daily", h.daily)
	v1.GET("/accounts/:id/remaining", h.remaining)
	v1.DELETE("/accounts/:id", h.withdraw)
	v1.GET("/queue", h.queue)

	return r
}

// requireToken guards the gateway with a static bearer token.
func requireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] != token {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authentication token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
