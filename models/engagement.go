package models

import (
	"time"
)

// UserEngagement 社群参与度聚合
// EngagementScore 在作者侧事件上整体重算（非增量），避免漂移；
// 被提及用户只累加 MentionsReceived，不触发重算。
type UserEngagement struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	UserID            int64     `gorm:"not null;uniqueIndex:uq_user_engagement_user_guild" json:"userId"`
	GuildID           int64     `gorm:"not null;uniqueIndex:uq_user_engagement_user_guild;index:idx_user_engagement_guild" json:"guildId"`
	MentionsMade      int       `gorm:"default:0" json:"mentionsMade"`
	MentionsReceived  int       `gorm:"default:0" json:"mentionsReceived"`
	ThreadsCreated    int       `gorm:"default:0" json:"threadsCreated"`
	InvitationsSent   int       `gorm:"default:0" json:"invitationsSent"`
	ActiveDaysInMonth int       `gorm:"default:0" json:"activeDaysInMonth"`
	StreakDays        int       `gorm:"default:0" json:"streakDays"`
	EngagementScore   float64   `gorm:"default:0" json:"engagementScore"`
	LastUpdate        time.Time `json:"lastUpdate"`
}

func (UserEngagement) TableName() string { return "user_engagement" }
