package models

import (
	"time"
)

// UserActivity 活跃度聚合（每个 (user, guild) 一行，事件到达时条件upsert）
// MostUsedChannel 语义是“最后所在频道”而非频率最高，读侧以 lastChannel 暴露；
// 按频率统计的 top channels 由快照层从 messages 表算出，两者刻意分开。
type UserActivity struct {
	ID                   uint       `gorm:"primarykey" json:"id"`
	UserID               int64      `gorm:"not null;uniqueIndex:uq_user_activity_user_guild" json:"userId"`
	GuildID              int64      `gorm:"not null;uniqueIndex:uq_user_activity_user_guild;index:idx_activity_guild" json:"guildId"`
	MessageCount         int        `gorm:"default:0" json:"messageCount"`
	AverageMessageLength float64    `gorm:"default:0" json:"averageMessageLength"`
	MostUsedChannel      string     `gorm:"size:200" json:"lastChannel"`
	LastMessageTime      *time.Time `json:"lastMessageTime"`
	ReactionCount        int        `gorm:"default:0" json:"reactionCount"`
	ReceivedReactions    int        `gorm:"default:0" json:"receivedReactions"`
	LastUpdate           time.Time  `json:"lastUpdate"`
}

func (UserActivity) TableName() string { return "user_activity" }

// UserVoice 语音聚合（会话关闭时累加）
type UserVoice struct {
	ID                   uint      `gorm:"primarykey" json:"id"`
	UserID               int64     `gorm:"not null;uniqueIndex:uq_user_voice_user_guild" json:"userId"`
	GuildID              int64     `gorm:"not null;uniqueIndex:uq_user_voice_user_guild" json:"guildId"`
	TimeInVoiceSeconds   int64     `gorm:"default:0" json:"timeInVoiceSeconds"`
	SessionsCount        int       `gorm:"default:0" json:"sessionsCount"`
	LastVoiceSession     string    `gorm:"size:200" json:"lastVoiceSession"`
	MostUsedVoiceChannel string    `gorm:"size:200" json:"lastVoiceChannel"`
	LastUpdate           time.Time `json:"lastUpdate"`
}

func (UserVoice) TableName() string { return "user_voice" }
