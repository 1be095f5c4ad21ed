package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/insightcord/insightcord/models"
	"github.com/insightcord/insightcord/pkg/alerts"
	"github.com/insightcord/insightcord/pkg/analysis"
	"github.com/insightcord/insightcord/pkg/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const defaultTopToxicLimit = 10

// AdminHandler 管理端操作：监控名单、毒性倒排、重建
type AdminHandler struct {
	db               *gorm.DB
	alerts           *alerts.Engine
	signals          *analysis.Aggregator
	defaultThreshold float64
	log              *logger.Logger
}

func NewAdminHandler(db *gorm.DB, alertEngine *alerts.Engine, signals *analysis.Aggregator, defaultThreshold float64, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		db:               db,
		alerts:           alertEngine,
		signals:          signals,
		defaultThreshold: defaultThreshold,
		log:              log.With("handler", "admin"),
	}
}

// ListMonitored 监控名单
func (h *AdminHandler) ListMonitored(c *gin.Context) {
	guildID, ok := parseID(c, "guildId")
	if !ok {
		return
	}

	rows, err := h.alerts.List(c.Request.Context(), guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list monitored users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"guild_id": guildID, "monitored": rows})
}

// WatchRequest 加入监控名单请求
type WatchRequest struct {
	UserID    int64    `json:"user_id" binding:"required"`
	Threshold *float64 `json:"threshold"`
}

// Watch 把用户加入监控名单
func (h *AdminHandler) Watch(c *gin.Context) {
	guildID, ok := parseID(c, "guildId")
	if !ok {
		return
	}

	var req WatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	threshold := h.defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold <= 0 || threshold > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be in (0, 1]"})
		return
	}

	if err := h.alerts.Watch(c.Request.Context(), req.UserID, guildID, threshold); err != nil {
		h.log.Error("加入监控失败", "guild_id", guildID, "user_id", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to watch user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "threshold": threshold})
}

// Unwatch 把用户移出监控名单
func (h *AdminHandler) Unwatch(c *gin.Context) {
	guildID, ok := parseID(c, "guildId")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	removed, err := h.alerts.Unwatch(c.Request.Context(), userID, guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unwatch user"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "user is not monitored"})
		return
	}
	c.Status(http.StatusNoContent)
}

// TopToxic 毒性倒排榜
func (h *AdminHandler) TopToxic(c *gin.Context) {
	guildID, ok := parseID(c, "guildId")
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultTopToxicLimit)))
	if err != nil || limit <= 0 {
		limit = defaultTopToxicLimit
	}

	var rows []struct {
		UserID            int64   `json:"user_id"`
		Username          string  `json:"username"`
		ToxicityLevel     float64 `json:"toxicity_level"`
		DominantSentiment string  `json:"dominant_sentiment"`
	}
	err = h.db.WithContext(c.Request.Context()).
		Table("user_ai_analysis").
		Select("user_ai_analysis.user_id, COALESCE(NULLIF(users.username, ''), ?) AS username, user_ai_analysis.toxicity_level, user_ai_analysis.dominant_sentiment",
			models.UnknownUsername).
		Joins("LEFT JOIN users ON users.user_id = user_ai_analysis.user_id AND users.guild_id = user_ai_analysis.guild_id").
		Where("user_ai_analysis.guild_id = ? AND user_ai_analysis.toxicity_level > 0", guildID).
		Order("user_ai_analysis.toxicity_level DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		h.log.Error("毒性倒排查询失败", "guild_id", guildID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query toxicity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"guild_id": guildID, "top_toxic": rows})
}

// RebuildUser 重建单个用户的内容信号
func (h *AdminHandler) RebuildUser(c *gin.Context) {
	guildID, ok := parseID(c, "guildId")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	if err := h.signals.RebuildForUser(c.Request.Context(), userID, guildID); err != nil {
		h.log.Error("重建失败", "guild_id", guildID, "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rebuild failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rebuilt", "user_id": userID})
}

// RebuildAll 后台重建全部用户的内容信号
func (h *AdminHandler) RebuildAll(c *gin.Context) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := h.signals.RebuildAll(ctx); err != nil {
			h.log.Error("全量重建失败", "error", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "rebuild started"})
}
