package analytics

import (
	"context"
	"time"

	"github.com/insightcord/insightcord/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 参与度评分权重
const (
	weightMessages          = 0.5
	weightReactionsReceived = 1.0
	weightReactionsMade     = 0.2
	weightActiveDays        = 3.0
	weightStreak            = 2.0
)

// streakLookbackDays streak回看窗口
const streakLookbackDays = 180

// EngagementScore 参与度评分公式
func EngagementScore(messages, reactionsMade, reactionsReceived, activeDays, streak int) float64 {
	return float64(messages)*weightMessages +
		float64(reactionsReceived)*weightReactionsReceived +
		float64(reactionsMade)*weightReactionsMade +
		float64(activeDays)*weightActiveDays +
		float64(streak)*weightStreak
}

// EngagementAggregator 社群参与度聚合器。
// 作者侧事件触发整体重算（读计数表+活跃度表），被提及者只做计数自增。
type EngagementAggregator struct {
	db       *gorm.DB
	daily    *DailyCounterStore
	activity *ActivityAggregator
	now      func() time.Time
}

// NewEngagementAggregator 创建参与度聚合器
func NewEngagementAggregator(db *gorm.DB, daily *DailyCounterStore, activity *ActivityAggregator) *EngagementAggregator {
	return &EngagementAggregator{
		db:       db,
		daily:    daily,
		activity: activity,
		now:      time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (e *EngagementAggregator) SetClock(now func() time.Time) { e.now = now }

// EnsureUser 确保 users 行存在（被提及者等只知道ID的场景用占位名创建）
func EnsureUser(ctx context.Context, tx *gorm.DB, userID, guildID int64, username string) error {
	if username == "" {
		username = models.UnknownUsername
	}
	u := models.User{
		UserID:     userID,
		GuildID:    guildID,
		Username:   username,
		IsActive:   true,
		LastUpdate: time.Now().UTC(),
	}
	// 已存在时不覆盖任何字段，只补缺行
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		DoNothing: true,
	}).Create(&u).Error
}

// ActiveDaysAndStreak 计算本月活跃天数与连续活跃天数（UTC，今天为终点）。
// 月初窗口收窄属于预期行为：窗口锚定日历月而非滚动30天。
func (e *EngagementAggregator) ActiveDaysAndStreak(ctx context.Context, tx *gorm.DB, userID, guildID int64) (int, int, error) {
	today := e.now().UTC()
	startMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	monthDays, err := e.daily.ActiveDays(ctx, tx, userID, guildID,
		startMonth.Format(models.DayLayout), models.DayOf(today))
	if err != nil {
		return 0, 0, err
	}

	lookback := today.AddDate(0, 0, -streakLookbackDays)
	recentDays, err := e.daily.ActiveDays(ctx, tx, userID, guildID,
		lookback.Format(models.DayLayout), models.DayOf(today))
	if err != nil {
		return 0, 0, err
	}

	return len(monthDays), StreakEndingAt(recentDays, today), nil
}

// RecordMessageEngagement 消息事件的参与度更新：
//  1. 确保作者与所有被提及者的users行存在
//  2. 读取作者的活跃度计数，重算本月活跃天数、streak与评分
//  3. 作者行upsert：mentions_made += n，派生值整体覆盖
//  4. 每个被提及者：mentions_received += 1（不重算其评分）
//
// 整个调用在一个事务内，任何持久化错误整体回滚。
func (e *EngagementAggregator) RecordMessageEngagement(ctx context.Context, authorID, guildID int64, mentionedIDs []int64) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := EnsureUser(ctx, tx, authorID, guildID, ""); err != nil {
			return err
		}
		for _, mid := range mentionedIDs {
			if err := EnsureUser(ctx, tx, mid, guildID, ""); err != nil {
				return err
			}
		}

		// 读写共用同一事务连接
		ua, err := e.activity.Get(ctx, tx, authorID, guildID)
		if err != nil {
			return err
		}
		activeDays, streak, err := e.ActiveDaysAndStreak(ctx, tx, authorID, guildID)
		if err != nil {
			return err
		}
		score := EngagementScore(ua.MessageCount, ua.ReactionCount, ua.ReceivedReactions, activeDays, streak)

		now := e.now().UTC()
		incMade := len(mentionedIDs)

		author := models.UserEngagement{
			UserID:            authorID,
			GuildID:           guildID,
			MentionsMade:      incMade,
			ActiveDaysInMonth: activeDays,
			StreakDays:        streak,
			EngagementScore:   score,
			LastUpdate:        now,
		}
		err = tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"mentions_made":        gorm.Expr("user_engagement.mentions_made + ?", incMade),
				"active_days_in_month": activeDays,
				"streak_days":          streak,
				"engagement_score":     score,
				"last_update":          now,
			}),
		}).Create(&author).Error
		if err != nil {
			return err
		}

		for _, mid := range mentionedIDs {
			mentioned := models.UserEngagement{
				UserID:           mid,
				GuildID:          guildID,
				MentionsReceived: 1,
				LastUpdate:       now,
			}
			err = tx.WithContext(ctx).Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"mentions_received": gorm.Expr("user_engagement.mentions_received + 1"),
					"last_update":       now,
				}),
			}).Create(&mentioned).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Get 读取参与度聚合；不存在返回零值行
func (e *EngagementAggregator) Get(ctx context.Context, userID, guildID int64) (models.UserEngagement, error) {
	var ue models.UserEngagement
	err := e.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&ue).Error
	if err == gorm.ErrRecordNotFound {
		return models.UserEngagement{UserID: userID, GuildID: guildID}, nil
	}
	return ue, err
}
