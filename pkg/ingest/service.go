package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/insightcord/insightcord/configs"
	"github.com/insightcord/insightcord/models"
	"github.com/insightcord/insightcord/pkg/alerts"
	"github.com/insightcord/insightcord/pkg/analysis"
	"github.com/insightcord/insightcord/pkg/analytics"
	"github.com/insightcord/insightcord/pkg/cache"
	"github.com/insightcord/insightcord/pkg/logger"
	"github.com/insightcord/insightcord/pkg/worker"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// upsertDedupTTL 公会/用户元数据刷新去重窗口
	upsertDedupTTL = 5 * time.Minute
	// eventDedupTTL 事件ID去重窗口
	eventDedupTTL = 10 * time.Minute
)

// Service 事件入口：接事件，同步落地计数，异步触发内容分析。
type Service struct {
	db         *gorm.DB
	log        *logger.Logger
	activity   *analytics.ActivityAggregator
	engagement *analytics.EngagementAggregator
	voice      *analytics.VoiceTracker
	signals    *analysis.Aggregator
	alerts     *alerts.Engine

	guildCache *cache.TTLCache
	userCache  *cache.TTLCache
	eventCache *cache.TTLCache
	aiCooldown *cache.TTLCache

	aiPool        *worker.Pool
	minAnalyzeLen int
	now           func() time.Time
}

// NewService 装配事件入口
func NewService(
	db *gorm.DB,
	log *logger.Logger,
	activity *analytics.ActivityAggregator,
	engagement *analytics.EngagementAggregator,
	voice *analytics.VoiceTracker,
	signals *analysis.Aggregator,
	alertEngine *alerts.Engine,
	cfg configs.Workers,
) *Service {
	return &Service{
		db:            db,
		log:           log.With("component", "ingest"),
		activity:      activity,
		engagement:    engagement,
		voice:         voice,
		signals:       signals,
		alerts:        alertEngine,
		guildCache:    cache.New(1024, upsertDedupTTL),
		userCache:     cache.New(8192, upsertDedupTTL),
		eventCache:    cache.New(16384, eventDedupTTL),
		aiCooldown:    cache.New(8192, time.Duration(cfg.CooldownSec)*time.Second),
		aiPool:        worker.New("analysis", cfg.AnalysisWorkers, cfg.AnalysisQueue, log),
		minAnalyzeLen: cfg.MinAnalyzeLen,
		now:           time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Close 停掉工作池并释放缓存
func (s *Service) Close() {
	s.aiPool.Stop()
	s.guildCache.Close()
	s.userCache.Close()
	s.eventCache.Close()
	s.aiCooldown.Close()
}

func guildKey(guildID int64) string        { return fmt.Sprintf("g:%d", guildID) }
func userKey(guildID, userID int64) string { return fmt.Sprintf("u:%d:%d", guildID, userID) }

// upsertGuild 写入/刷新公会元数据，5分钟内同一公会只写一次。
// 去重标记由调用方在事务提交后打，回滚不占用窗口。
func (s *Service) upsertGuild(ctx context.Context, tx *gorm.DB, ev models.MessageEvent) error {
	if s.guildCache.Seen(guildKey(ev.GuildID)) {
		return nil
	}

	name := ev.GuildName
	if name == "" {
		name = fmt.Sprintf("Guild %d", ev.GuildID)
	}
	g := models.Guild{
		GuildID:     ev.GuildID,
		GuildName:   name,
		OwnerID:     ev.OwnerID,
		MemberCount: ev.MemberCount,
		LastUpdate:  s.now().UTC(),
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "guild_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"guild_name":   g.GuildName,
			"owner_id":     g.OwnerID,
			"member_count": g.MemberCount,
			"last_update":  g.LastUpdate,
		}),
	}).Create(&g).Error
}

// upsertUser 写入/刷新用户元数据，同样带去重窗口
func (s *Service) upsertUser(ctx context.Context, tx *gorm.DB, userID, guildID int64, username, avatarURL string) error {
	if s.userCache.Seen(userKey(guildID, userID)) {
		return nil
	}

	if username == "" {
		username = models.UnknownUsername
	}
	u := models.User{
		UserID:     userID,
		GuildID:    guildID,
		Username:   username,
		AvatarURL:  avatarURL,
		IsActive:   true,
		LastUpdate: s.now().UTC(),
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"username":    u.Username,
			"avatar_url":  u.AvatarURL,
			"is_active":   true,
			"last_update": u.LastUpdate,
		}),
	}).Create(&u).Error
}

// seenEvent 按事件ID去重；空ID不去重
func (s *Service) seenEvent(kind, eventID string) bool {
	if eventID == "" {
		return false
	}
	return s.eventCache.Recent(kind + ":" + eventID)
}

// HandleMessage 处理一条消息事件。
// 同步部分在一个事务里：公会/用户元数据、消息行、活跃度聚合。
// 参与度重算失败只记日志。内容分析受冷却窗口约束，丢进异步池。
func (s *Service) HandleMessage(ctx context.Context, ev models.MessageEvent) error {
	if ev.AuthorIsBot || ev.GuildID == 0 {
		return nil
	}
	if s.seenEvent("msg", ev.EventID) {
		return nil
	}

	when := ev.Timestamp
	if when.IsZero() {
		when = s.now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.upsertGuild(ctx, tx, ev); err != nil {
			return err
		}
		if err := s.upsertUser(ctx, tx, ev.UserID, ev.GuildID, ev.Username, ev.AvatarURL); err != nil {
			return err
		}

		m := models.Message{
			UserID:        ev.UserID,
			GuildID:       ev.GuildID,
			ChannelID:     ev.ChannelID,
			Content:       ev.Content,
			MessageLength: len([]rune(ev.Content)),
			Timestamp:     when,
		}
		if err := tx.WithContext(ctx).Create(&m).Error; err != nil {
			return err
		}

		channel := ev.ChannelName
		if channel == "" {
			channel = fmt.Sprintf("%d", ev.ChannelID)
		}
		return s.activity.RecordMessage(ctx, tx, ev.UserID, ev.GuildID, channel, m.MessageLength, when)
	})
	if err != nil {
		return err
	}
	s.guildCache.Mark(guildKey(ev.GuildID))
	s.userCache.Mark(userKey(ev.GuildID, ev.UserID))

	if err := s.engagement.RecordMessageEngagement(ctx, ev.UserID, ev.GuildID, ev.MentionedIDs); err != nil {
		s.log.Warn("参与度重算失败", "user_id", ev.UserID, "guild_id", ev.GuildID, "error", err)
	}

	s.maybeAnalyze(ev)
	return nil
}

// maybeAnalyze 冷却窗口内同一用户只分析一次；队列满时丢弃
func (s *Service) maybeAnalyze(ev models.MessageEvent) {
	if len([]rune(ev.Content)) < s.minAnalyzeLen {
		return
	}
	key := fmt.Sprintf("ai:%d:%d", ev.GuildID, ev.UserID)
	if s.aiCooldown.Recent(key) {
		return
	}

	userID, guildID := ev.UserID, ev.GuildID
	content, username := ev.Content, ev.Username
	ok := s.aiPool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.signals.UpdateSignals(ctx, userID, guildID, content); err != nil {
			s.log.Warn("内容分析失败", "user_id", userID, "guild_id", guildID, "error", err)
			return
		}
		ai, err := s.signals.Get(ctx, userID, guildID)
		if err != nil {
			return
		}
		if _, err := s.alerts.Check(ctx, userID, guildID, ai.ToxicityLevel, username); err != nil {
			s.log.Warn("告警检查失败", "user_id", userID, "error", err)
		}
	})
	if !ok {
		s.log.Warn("分析队列已满，丢弃任务", "user_id", userID, "guild_id", guildID)
	}
}

// HandleReaction 处理一条表情回应事件
func (s *Service) HandleReaction(ctx context.Context, ev models.ReactionEvent) error {
	if ev.ReactorIsBot || ev.GuildID == 0 {
		return nil
	}
	if s.seenEvent("react", ev.EventID) {
		return nil
	}

	authorID := ev.AuthorID
	if ev.AuthorIsBot {
		authorID = 0
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := analytics.EnsureUser(ctx, tx, ev.ReactorID, ev.GuildID, ""); err != nil {
			return err
		}
		if authorID != 0 {
			if err := analytics.EnsureUser(ctx, tx, authorID, ev.GuildID, ""); err != nil {
				return err
			}
		}
		return s.activity.RecordReaction(ctx, tx, ev.ReactorID, authorID, ev.GuildID)
	})
	if err != nil {
		return err
	}

	if err := s.engagement.RecordMessageEngagement(ctx, ev.ReactorID, ev.GuildID, nil); err != nil {
		s.log.Warn("参与度重算失败", "user_id", ev.ReactorID, "guild_id", ev.GuildID, "error", err)
	}
	return nil
}

// HandleVoice 处理一条语音状态事件
func (s *Service) HandleVoice(ctx context.Context, ev models.VoiceEvent) error {
	if ev.IsBot || ev.GuildID == 0 {
		return nil
	}
	if s.seenEvent("voice", ev.EventID) {
		return nil
	}
	return s.voice.HandleEvent(ctx, ev)
}
