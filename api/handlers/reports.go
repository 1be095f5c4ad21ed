package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/insightcord/insightcord/pkg/analytics"
	"github.com/insightcord/insightcord/pkg/charts"
	"github.com/insightcord/insightcord/pkg/logger"
	"github.com/insightcord/insightcord/pkg/worker"

	"github.com/gin-gonic/gin"
)

const defaultLeaderboardLimit = 10

// ReportHandler 只读报表接口
type ReportHandler struct {
	snapshots *analytics.SnapshotComposer
	ranks     *analytics.RankEngine
	renderer  *charts.Renderer
	chartPool *worker.Pool
	log       *logger.Logger
}

func NewReportHandler(
	snapshots *analytics.SnapshotComposer,
	ranks *analytics.RankEngine,
	renderer *charts.Renderer,
	chartPool *worker.Pool,
	log *logger.Logger,
) *ReportHandler {
	return &ReportHandler{
		snapshots: snapshots,
		ranks:     ranks,
		renderer:  renderer,
		chartPool: chartPool,
		log:       log.With("handler", "reports"),
	}
}

// Snapshot 用户画像快照
func (h *ReportHandler) Snapshot(c *gin.Context) {
	guildID, ok := parseID(c, "guildId")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	snap, err := h.snapshots.Compose(c.Request.Context(), guildID, userID)
	if err != nil {
		h.log.Error("快照合成失败", "guild_id", guildID, "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compose snapshot"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Rank 单个用户的排名与段位
func (h *ReportHandler) Rank(c *gin.Context) {
	guildID, ok := parseID(c, "guildId")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	ranked, found, err := h.ranks.RankOf(c.Request.Context(), guildID, userID)
	if err != nil {
		h.log.Error("排名计算失败", "guild_id", guildID, "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute rank"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "user has no activity in this guild"})
		return
	}

	resp := gin.H{
		"user_id":         ranked.UserID,
		"username":        ranked.Username,
		"rank":            ranked.Rank,
		"score":           ranked.Score,
		"engagement_norm": ranked.EngagementNorm,
		"tier":            ranked.Tier,
	}
	if next := analytics.NextTier(ranked.Score); next != nil {
		resp["next_tier"] = next.Name
		resp["points_to_next"] = next.MinScore - ranked.Score
	}
	c.JSON(http.StatusOK, resp)
}

// Leaderboard 公会排行榜
func (h *ReportHandler) Leaderboard(c *gin.Context) {
	guildID, ok := parseID(c, "guildId")
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLeaderboardLimit)))
	if err != nil || limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	profiles, err := h.ranks.FetchProfiles(c.Request.Context(), guildID)
	if err != nil {
		h.log.Error("读取画像失败", "guild_id", guildID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profiles"})
		return
	}

	board := analytics.Leaderboard(profiles)
	if len(board) > limit {
		board = board[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"guild_id": guildID, "leaderboard": board})
}

// Engagement 公会参与度总览
func (h *ReportHandler) Engagement(c *gin.Context) {
	guildID, ok := parseID(c, "guildId")
	if !ok {
		return
	}

	overview, err := h.snapshots.ComposeGuildOverview(c.Request.Context(), guildID)
	if err != nil {
		h.log.Error("总览合成失败", "guild_id", guildID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compose overview"})
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Chart 渲染一张图表并返回PNG。渲染在专用工作池里排队，队列满返回503。
func (h *ReportHandler) Chart(c *gin.Context) {
	guildID, ok := parseID(c, "guildId")
	if !ok {
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 || days > 365 {
		days = 30
	}
	req := charts.Request{
		Dataset: c.Param("dataset"),
		GuildID: guildID,
		Viz:     c.Query("viz"),
		Days:    days,
		Theme:   c.DefaultQuery("theme", "dark"),
	}

	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	submitted := h.chartPool.Submit(func() {
		path, err := h.renderer.Render(c.Request.Context(), req)
		done <- result{path: path, err: err}
	})
	if !submitted {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chart queue is full"})
		return
	}

	select {
	case res := <-done:
		if res.err != nil {
			h.log.Error("图表渲染失败", "guild_id", guildID, "dataset", req.Dataset, "error", res.err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render chart"})
			return
		}
		if res.path == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "no data for this dataset"})
			return
		}
		c.File(res.path)
	case <-time.After(30 * time.Second):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "chart rendering timed out"})
	case <-c.Request.Context().Done():
		c.Status(http.StatusRequestTimeout)
	}
}
