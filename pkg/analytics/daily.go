package analytics

import (
	"context"
	"time"

	"github.com/insightcord/insightcord/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyCounterStore 每日消息计数存储。
// 所有写入都是单次往返的条件upsert，同一key的并发自增不会互相覆盖。
type DailyCounterStore struct {
	db *gorm.DB
}

// NewDailyCounterStore 创建计数存储
func NewDailyCounterStore(db *gorm.DB) *DailyCounterStore {
	return &DailyCounterStore{db: db}
}

func (s *DailyCounterStore) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// Increment 将 (user, guild, day) 的计数+1，行不存在时以count=1创建
func (s *DailyCounterStore) Increment(ctx context.Context, tx *gorm.DB, userID, guildID int64, day string) error {
	rec := models.UserMessageDaily{
		UserID:  userID,
		GuildID: guildID,
		Day:     day,
		Count:   1,
	}
	return s.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count": gorm.Expr("user_message_daily.count + 1"),
		}),
	}).Create(&rec).Error
}

// SumRange 闭区间 [from, to] 内的消息总数；无记录返回0
func (s *DailyCounterStore) SumRange(ctx context.Context, tx *gorm.DB, userID, guildID int64, from, to string) (int, error) {
	var total int
	err := s.conn(tx).WithContext(ctx).Model(&models.UserMessageDaily{}).
		Select("COALESCE(SUM(count), 0)").
		Where("user_id = ? AND guild_id = ? AND day >= ? AND day <= ?", userID, guildID, from, to).
		Scan(&total).Error
	return total, err
}

// ActiveDays 闭区间内 count>0 的日期集合（升序）
func (s *DailyCounterStore) ActiveDays(ctx context.Context, tx *gorm.DB, userID, guildID int64, from, to string) ([]string, error) {
	var days []string
	err := s.conn(tx).WithContext(ctx).Model(&models.UserMessageDaily{}).
		Where("user_id = ? AND guild_id = ? AND day >= ? AND day <= ? AND count > 0", userID, guildID, from, to).
		Order("day ASC").
		Pluck("day", &days).Error
	return days, err
}

// DailyTotal 某日某服务器的单用户计数
type DailyTotal struct {
	Day   string
	Total int
}

// GuildDailyTotals 服务器维度的逐日总量（图表数据源）；since为空表示不限
func (s *DailyCounterStore) GuildDailyTotals(ctx context.Context, guildID int64, since string) ([]DailyTotal, error) {
	q := s.db.WithContext(ctx).Model(&models.UserMessageDaily{}).
		Select("day, SUM(count) AS total").
		Where("guild_id = ?", guildID)
	if since != "" {
		q = q.Where("day >= ?", since)
	}
	var rows []DailyTotal
	err := q.Group("day").Order("day ASC").Scan(&rows).Error
	return rows, err
}

// StreakEndingAt 以 today 为终点的连续活跃天数。
// 回看窗口由调用方限定，窗口外的历史不计入。
func StreakEndingAt(days []string, today time.Time) int {
	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	streak := 0
	cur := today.UTC()
	for {
		if _, ok := set[cur.Format(models.DayLayout)]; !ok {
			break
		}
		streak++
		cur = cur.AddDate(0, 0, -1)
	}
	return streak
}
