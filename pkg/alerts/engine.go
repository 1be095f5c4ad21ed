package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/insightcord/insightcord/configs"
	"github.com/insightcord/insightcord/models"
	"github.com/insightcord/insightcord/pkg/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Engine 毒性监控告警引擎。
// 只对显式加入监控名单的用户触发，同一用户两次告警之间有冷却期。
type Engine struct {
	db       *gorm.DB
	log      *logger.Logger
	notifier Notifier
	cooldown time.Duration
	now      func() time.Time
}

// NewEngine 创建告警引擎
func NewEngine(db *gorm.DB, log *logger.Logger, cfg configs.Alerts) *Engine {
	var notifier Notifier
	if cfg.WebhookURL != "" {
		notifier = NewWebhookNotifier(cfg.WebhookURL)
	} else {
		notifier = NewLogNotifier(log)
	}
	return &Engine{
		db:       db,
		log:      log.With("component", "alerts"),
		notifier: notifier,
		cooldown: time.Duration(cfg.CooldownHours) * time.Hour,
		now:      time.Now,
	}
}

// SetNotifier 替换投递实现（测试用）
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// SetClock 注入时钟（测试用）
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Watch 把用户加入监控名单；重复加入时更新阈值并清空冷却
func (e *Engine) Watch(ctx context.Context, userID, guildID int64, threshold float64) error {
	m := models.MonitoredUser{
		UserID:    userID,
		GuildID:   guildID,
		Threshold: threshold,
		AddedAt:   e.now().UTC(),
	}
	return e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"threshold":  threshold,
			"last_alert": nil,
		}),
	}).Create(&m).Error
}

// Unwatch 把用户移出监控名单；返回是否确实移除了一行
func (e *Engine) Unwatch(ctx context.Context, userID, guildID int64) (bool, error) {
	result := e.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Delete(&models.MonitoredUser{})
	return result.RowsAffected > 0, result.Error
}

// List 列出某公会的监控名单
func (e *Engine) List(ctx context.Context, guildID int64) ([]models.MonitoredUser, error) {
	var rows []models.MonitoredUser
	err := e.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("added_at ASC").
		Find(&rows).Error
	return rows, err
}

// Check 用最新毒性分数检查一个用户。满足
// 被监控 && 分数达到阈值 && 冷却期已过 三个条件才会投递告警，
// 投递成功后刷新 last_alert。返回本次是否触发。
func (e *Engine) Check(ctx context.Context, userID, guildID int64, toxicity float64, username string) (bool, error) {
	var m models.MonitoredUser
	err := e.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if toxicity < m.Threshold {
		return false, nil
	}

	now := e.now().UTC()
	if m.LastAlert != nil && now.Sub(*m.LastAlert) < e.cooldown {
		return false, nil
	}

	alert := Alert{
		UserID:    userID,
		GuildID:   guildID,
		Username:  username,
		Toxicity:  toxicity,
		Threshold: m.Threshold,
		FiredAt:   now,
	}
	if err := e.notifier.Notify(ctx, alert); err != nil {
		e.log.Warn("告警投递失败", "user_id", userID, "error", err)
		return false, err
	}

	// 运行日志留痕，管理端排查用
	logRow := models.BotLog{
		GuildID:     guildID,
		EventType:   "toxicity_alert",
		Description: fmt.Sprintf("user %d toxicity %.2f >= %.2f", userID, toxicity, m.Threshold),
	}
	if err := e.db.WithContext(ctx).Create(&logRow).Error; err != nil {
		e.log.Warn("写运行日志失败", "error", err)
	}

	err = e.db.WithContext(ctx).Model(&models.MonitoredUser{}).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Update("last_alert", now).Error
	return true, err
}
