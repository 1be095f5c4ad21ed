package models

import (
	"time"
)

// User 服务器内的成员（复合主键：同一用户在不同服务器是两条记录）
type User struct {
	UserID     int64      `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	GuildID    int64      `gorm:"primaryKey;autoIncrement:false;index:idx_users_guild" json:"guildId"`
	Username   string     `gorm:"size:100;not null" json:"username"`
	AvatarURL  string     `gorm:"size:500" json:"avatarUrl"`
	JoinDate   *time.Time `json:"joinDate"`
	Roles      []string   `gorm:"serializer:json" json:"roles"`
	IsActive   bool       `gorm:"default:true" json:"isActive"`
	LastUpdate time.Time  `json:"lastUpdate"`
}

func (User) TableName() string { return "users" }

// UnknownUsername 占位用户名（仅知道ID时惰性建行）
const UnknownUsername = "Unknown#0000"
