package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/okatev/huddle/internal/adapters/signal"
	"github.com/okatev/huddle/internal/config"
	"github.com/okatev/huddle/internal/domain"
	"github.com/okatev/huddle/internal/identity"
	"github.com/okatev/huddle/internal/relay"
)

func SetupRouter(ctx context.Context, cfg *config.Config, svc *relay.Service) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	provider := identity.CookieProvider{}
	ctl := signal.NewController(svc, provider, cfg)

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Rooms.List())
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		room, ok := svc.Rooms.Get(domain.RoomID(c.Param("id")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":      room.Room().ID,
			"members": room.MembersSnapshot(),
		})
	})

	// Clients without an explicit STUN flag ask the relay which
	// servers to use.
	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"stunServers": cfg.STUNServers})
	})

	api.POST("/profile", func(c *gin.Context) {
		var req struct {
			DisplayName string `json:"displayName"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.DisplayName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid displayName"})
			return
		}
		if len(req.DisplayName) > domain.MaxDisplayNameLen {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display name too long"})
			return
		}
		provider.Remember(c, req.DisplayName)
		c.JSON(http.StatusOK, gin.H{"displayName": req.DisplayName})
	})

	return r
}
