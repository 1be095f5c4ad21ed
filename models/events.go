package models

import (
	"time"
)

// MessageEvent 消息事件（网关推送）
type MessageEvent struct {
	EventID      string    `json:"eventId"`
	UserID       int64     `json:"userId" binding:"required"`
	GuildID      int64     `json:"guildId" binding:"required"`
	ChannelID    int64     `json:"channelId"`
	ChannelName  string    `json:"channelName"`
	Username     string    `json:"username"`
	AvatarURL    string    `json:"avatarUrl"`
	Content      string    `json:"content"`
	MentionedIDs []int64   `json:"mentionedIds"`
	AuthorIsBot  bool      `json:"authorIsBot"`
	Timestamp    time.Time `json:"timestamp"`

	// 事件携带的服务器快照，用于惰性upsert
	GuildName   string `json:"guildName"`
	OwnerID     int64  `json:"ownerId"`
	MemberCount int    `json:"memberCount"`
}

// ReactionEvent 表情回应事件
type ReactionEvent struct {
	EventID      string `json:"eventId"`
	ReactorID    int64  `json:"reactorId" binding:"required"`
	AuthorID     int64  `json:"authorId" binding:"required"`
	GuildID      int64  `json:"guildId" binding:"required"`
	ReactorIsBot bool   `json:"reactorIsBot"`
	AuthorIsBot  bool   `json:"authorIsBot"`
}

// 语音事件动作
const (
	VoiceJoin   = "join"
	VoiceLeave  = "leave"
	VoiceSwitch = "switch"
)

// VoiceEvent 语音状态变更事件
type VoiceEvent struct {
	EventID     string    `json:"eventId"`
	UserID      int64     `json:"userId" binding:"required"`
	GuildID     int64     `json:"guildId" binding:"required"`
	Action      string    `json:"action" binding:"required"`
	ChannelID   int64     `json:"channelId"`
	ChannelName string    `json:"channelName"`
	Username    string    `json:"username"`
	IsBot       bool      `json:"isBot"`
	Timestamp   time.Time `json:"timestamp"`
}
