package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"edu-duel-service/internal/app"
)

// NewRouter wires the duel engine's operations to JSON endpoints. The caller
// is authenticated upstream; handlers read the identity from the X-User-ID
// header set by the gateway.
func NewRouter(duels *app.DuelService, stats *app.StatsService, hub *app.WatchHub) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	h := &DuelHandler{duels: duels, stats: stats}
	ws := NewWSHandler(duels, hub)

	api := router.Group("/api", RequireUser())
	{
		api.POST("/duels", h.Create)
		api.GET("/duels", h.List)
		api.GET("/duels/invitations", h.ListInvitations)
		api.GET("/duels/classmates", h.EligibleClassmates)
		api.GET("/duels/:id", h.Get)
		api.POST("/duels/:id/invite", h.Invite)
		api.POST("/duels/:id/accept", h.Accept)
		api.POST("/duels/:id/decline", h.Decline)
		api.POST("/duels/:id/start", h.Start)
		api.POST("/duels/:id/answers", h.SubmitAnswer)
		api.POST("/duels/:id/complete", h.ForceComplete)
		api.GET("/stats", h.Stats)
	}

	router.GET("/ws/duels/:id", ws.ServeWS)

	return router
}
