package handlers

import (
	"net/http"
	"strconv"

	"github.com/insightcord/insightcord/models"
	"github.com/insightcord/insightcord/pkg/ingest"
	"github.com/insightcord/insightcord/pkg/logger"

	"github.com/gin-gonic/gin"
)

// EventHandler 事件接入
type EventHandler struct {
	svc *ingest.Service
	log *logger.Logger
}

func NewEventHandler(svc *ingest.Service, log *logger.Logger) *EventHandler {
	return &EventHandler{svc: svc, log: log.With("handler", "events")}
}

// parseID 解析路径参数里的雪花ID
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// Message 接收一条消息事件
func (h *EventHandler) Message(c *gin.Context) {
	var ev models.MessageEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.HandleMessage(c.Request.Context(), ev); err != nil {
		h.log.Error("消息事件处理失败", "guild_id", ev.GuildID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Reaction 接收一条表情回应事件
func (h *EventHandler) Reaction(c *gin.Context) {
	var ev models.ReactionEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.HandleReaction(c.Request.Context(), ev); err != nil {
		h.log.Error("回应事件处理失败", "guild_id", ev.GuildID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Voice 接收一条语音状态事件
func (h *EventHandler) Voice(c *gin.Context) {
	var ev models.VoiceEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ev.Action != models.VoiceJoin && ev.Action != models.VoiceLeave && ev.Action != models.VoiceSwitch {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action"})
		return
	}

	if err := h.svc.HandleVoice(c.Request.Context(), ev); err != nil {
		h.log.Error("语音事件处理失败", "guild_id", ev.GuildID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
