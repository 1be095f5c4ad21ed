package models

import (
	"time"
)

// Message 原始消息记录（内容分析重建与快照回退扫描的数据源）
type Message struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	UserID        int64     `gorm:"not null;index:idx_messages_user;index:idx_messages_user_time" json:"userId"`
	GuildID       int64     `gorm:"not null;index:idx_messages_guild;index:idx_messages_guild_time" json:"guildId"`
	ChannelID     int64     `json:"channelId"`
	Content       string    `gorm:"type:text" json:"content"`
	MessageLength int       `json:"messageLength"`
	Timestamp     time.Time `gorm:"index:idx_messages_user_time;index:idx_messages_guild_time" json:"timestamp"`
}

func (Message) TableName() string { return "messages" }

// UserMessageDaily 每日消息计数（(user, guild, day) 只增不减）
// day 统一为UTC日历日，格式 YYYY-MM-DD：三种方言下顺序与等值语义一致。
type UserMessageDaily struct {
	UserID  int64  `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	GuildID int64  `gorm:"primaryKey;autoIncrement:false;index:idx_umd_guild_day" json:"guildId"`
	Day     string `gorm:"primaryKey;size:10;index:idx_umd_guild_day" json:"day"`
	Count   int    `gorm:"default:0" json:"count"`
}

func (UserMessageDaily) TableName() string { return "user_message_daily" }

// DayLayout day 字段的格式
const DayLayout = "2006-01-02"

// DayOf 取时间戳所在的UTC日历日
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}
