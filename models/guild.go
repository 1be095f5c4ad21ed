package models

import (
	"time"
)

// Guild 服务器（首次收到事件时惰性创建，之后幂等刷新）
type Guild struct {
	GuildID     int64     `gorm:"primaryKey;autoIncrement:false" json:"guildId"`
	GuildName   string    `gorm:"size:200;not null" json:"guildName"`
	OwnerID     int64     `json:"ownerId"`
	MemberCount int       `gorm:"default:0" json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdate  time.Time `json:"lastUpdate"`
}

func (Guild) TableName() string { return "guilds" }

// BotLog 运行事件日志（管理端排查用）
type BotLog struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	GuildID     int64     `gorm:"index" json:"guildId"`
	EventType   string    `gorm:"size:50" json:"eventType"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (BotLog) TableName() string { return "bot_logs" }
