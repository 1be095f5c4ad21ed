package analytics

import (
	"context"
	"time"

	"github.com/insightcord/insightcord/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityAggregator 消息/回应活跃度聚合。
// 写入走条件upsert：剩余列的加权平均与自增都在一条SQL里完成，
// 并发写同一 (user, guild) 不会产生读改写竞态。
type ActivityAggregator struct {
	db    *gorm.DB
	daily *DailyCounterStore
}

// NewActivityAggregator 创建活跃度聚合器
func NewActivityAggregator(db *gorm.DB, daily *DailyCounterStore) *ActivityAggregator {
	return &ActivityAggregator{db: db, daily: daily}
}

func (a *ActivityAggregator) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// RecordMessage 记录一条消息：
//   - message_count += 1
//   - average_message_length 按在线均值恒等式更新（旧count为自增前的值）
//   - most_used_channel = 本次事件的频道（最后所见语义）
//   - last_message_time = when
//   - 同步自增当日计数
func (a *ActivityAggregator) RecordMessage(ctx context.Context, tx *gorm.DB, userID, guildID int64, channel string, contentLength int, when time.Time) error {
	now := time.Now().UTC()
	when = when.UTC()

	rec := models.UserActivity{
		UserID:               userID,
		GuildID:              guildID,
		MessageCount:         1,
		AverageMessageLength: float64(contentLength),
		MostUsedChannel:      channel,
		LastMessageTime:      &when,
		LastUpdate:           now,
	}
	err := a.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"message_count": gorm.Expr("user_activity.message_count + 1"),
			"average_message_length": gorm.Expr(
				"(user_activity.average_message_length * user_activity.message_count + ?) / (user_activity.message_count + 1)",
				float64(contentLength),
			),
			"most_used_channel": channel,
			"last_message_time": when,
			"last_update":       now,
		}),
	}).Create(&rec).Error
	if err != nil {
		return err
	}

	return a.daily.Increment(ctx, tx, userID, guildID, models.DayOf(when))
}

// RecordReaction 记录一次表情回应：回应者given+1、消息作者received+1。
// 两个upsert相互独立；机器人作者的过滤由调用方完成。
func (a *ActivityAggregator) RecordReaction(ctx context.Context, tx *gorm.DB, reactorID, authorID, guildID int64) error {
	now := time.Now().UTC()

	reactor := models.UserActivity{
		UserID:        reactorID,
		GuildID:       guildID,
		ReactionCount: 1,
		LastUpdate:    now,
	}
	err := a.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"reaction_count": gorm.Expr("user_activity.reaction_count + 1"),
			"last_update":    now,
		}),
	}).Create(&reactor).Error
	if err != nil {
		return err
	}

	// authorID为0表示作者侧不记账（机器人作者等）
	if authorID == 0 {
		return nil
	}

	author := models.UserActivity{
		UserID:            authorID,
		GuildID:           guildID,
		ReceivedReactions: 1,
		LastUpdate:        now,
	}
	return a.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"received_reactions": gorm.Expr("user_activity.received_reactions + 1"),
			"last_update":        now,
		}),
	}).Create(&author).Error
}

// Get 读取活跃度聚合；不存在时返回零值行（缺数据不是错误）
func (a *ActivityAggregator) Get(ctx context.Context, tx *gorm.DB, userID, guildID int64) (models.UserActivity, error) {
	var ua models.UserActivity
	err := a.conn(tx).WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&ua).Error
	if err == gorm.ErrRecordNotFound {
		return models.UserActivity{UserID: userID, GuildID: guildID}, nil
	}
	return ua, err
}
