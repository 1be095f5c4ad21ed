package models

import (
	"time"
)

// 情感标签
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// UserAIAnalysis 内容信号聚合（毒性平滑、主导情感、话题、表达风格）
type UserAIAnalysis struct {
	ID                 uint           `gorm:"primarykey" json:"id"`
	UserID             int64          `gorm:"not null;uniqueIndex:uq_user_ai_user_guild" json:"userId"`
	GuildID            int64          `gorm:"not null;uniqueIndex:uq_user_ai_user_guild" json:"guildId"`
	DominantSentiment  string         `gorm:"size:20;default:'neutral'" json:"dominantSentiment"`
	TopicsOfInterest   map[string]int `gorm:"serializer:json" json:"topicsOfInterest"`
	CommunicationStyle string         `gorm:"size:100" json:"communicationStyle"`
	ToxicityLevel      float64        `gorm:"default:0" json:"toxicityLevel"`
	LastAnalysis       time.Time      `json:"lastAnalysis"`
}

func (UserAIAnalysis) TableName() string { return "user_ai_analysis" }

// MonitoredUser 毒性监控条目（管理端主动加入）
type MonitoredUser struct {
	UserID    int64      `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	GuildID   int64      `gorm:"primaryKey;autoIncrement:false" json:"guildId"`
	Threshold float64    `gorm:"default:0.8" json:"threshold"`
	AddedAt   time.Time  `json:"addedAt"`
	LastAlert *time.Time `json:"lastAlert"`
}

func (MonitoredUser) TableName() string { return "monitored_users" }
