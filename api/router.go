package api

import (
	"net/http"
	"time"

	"github.com/insightcord/insightcord/api/handlers"
	"github.com/insightcord/insightcord/api/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Auth    *handlers.AuthHandler
	Events  *handlers.EventHandler
	Reports *handlers.ReportHandler
	Admin   *handlers.AdminHandler
}

// SetupRouter 设置API路由
func SetupRouter(router *gin.Engine, h Handlers) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 公共API
	public := router.Group("/api")
	{
		public.POST("/auth/login", h.Auth.Login)
	}

	// 需要认证的API
	authorized := router.Group("/api")
	authorized.Use(middleware.Auth())
	{
		// 事件接入
		authorized.POST("/events/message", h.Events.Message)
		authorized.POST("/events/reaction", h.Events.Reaction)
		authorized.POST("/events/voice", h.Events.Voice)

		// 报表
		authorized.GET("/guilds/:guildId/users/:userId/snapshot", h.Reports.Snapshot)
		authorized.GET("/guilds/:guildId/users/:userId/rank", h.Reports.Rank)
		authorized.GET("/guilds/:guildId/leaderboard", h.Reports.Leaderboard)
		authorized.GET("/guilds/:guildId/engagement", h.Reports.Engagement)
		authorized.GET("/guilds/:guildId/charts/:dataset", h.Reports.Chart)

		// 管理端
		authorized.GET("/guilds/:guildId/monitored", h.Admin.ListMonitored)
		authorized.POST("/guilds/:guildId/monitored", h.Admin.Watch)
		authorized.DELETE("/guilds/:guildId/monitored/:userId", h.Admin.Unwatch)
		authorized.GET("/guilds/:guildId/top-toxic", h.Admin.TopToxic)
		authorized.POST("/guilds/:guildId/users/:userId/rebuild", h.Admin.RebuildUser)
		authorized.POST("/rebuild", h.Admin.RebuildAll)
	}
}
