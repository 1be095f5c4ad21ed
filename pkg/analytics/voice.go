package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/insightcord/insightcord/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// voiceSession 进行中的语音会话（仅内存；进程重启即丢失，属于可接受的at-most-once缺口）
type voiceSession struct {
	start       time.Time
	channelID   int64
	channelName string
}

// VoiceTracker 语音状态机：join打开会话，leave/switch关闭会话并累加聚合。
type VoiceTracker struct {
	db       *gorm.DB
	mu       sync.Mutex
	sessions map[string]voiceSession
	now      func() time.Time
}

// NewVoiceTracker 创建语音追踪器
func NewVoiceTracker(db *gorm.DB) *VoiceTracker {
	return &VoiceTracker{
		db:       db,
		sessions: make(map[string]voiceSession),
		now:      time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (v *VoiceTracker) SetClock(now func() time.Time) { v.now = now }

func voiceKey(guildID, userID int64) string {
	return fmt.Sprintf("%d:%d", guildID, userID)
}

// HandleEvent 处理一次语音状态变更。
// leave/switch 在没有打开会话时被忽略（多出现在进程重启后）。
func (v *VoiceTracker) HandleEvent(ctx context.Context, ev models.VoiceEvent) error {
	key := voiceKey(ev.GuildID, ev.UserID)
	now := v.now().UTC()

	switch ev.Action {
	case models.VoiceJoin:
		v.mu.Lock()
		v.sessions[key] = voiceSession{start: now, channelID: ev.ChannelID, channelName: ev.ChannelName}
		v.mu.Unlock()
		return nil

	case models.VoiceLeave:
		v.mu.Lock()
		sess, ok := v.sessions[key]
		delete(v.sessions, key)
		v.mu.Unlock()
		if !ok {
			return nil
		}
		return v.closeSession(ctx, ev.UserID, ev.GuildID, sess, now)

	case models.VoiceSwitch:
		v.mu.Lock()
		sess, ok := v.sessions[key]
		v.sessions[key] = voiceSession{start: now, channelID: ev.ChannelID, channelName: ev.ChannelName}
		v.mu.Unlock()
		if !ok {
			return nil
		}
		return v.closeSession(ctx, ev.UserID, ev.GuildID, sess, now)

	default:
		return fmt.Errorf("unknown voice action: %s", ev.Action)
	}
}

// closeSession 会话关闭时的条件upsert：时长与次数累加，最后会话描述覆盖
func (v *VoiceTracker) closeSession(ctx context.Context, userID, guildID int64, sess voiceSession, now time.Time) error {
	duration := now.Sub(sess.start)
	if duration < 0 {
		duration = 0
	}
	seconds := int64(duration.Seconds())
	descriptor := fmt.Sprintf("%s (%s)", now.Format("2006-01-02 15:04:05"), duration.Round(time.Second))

	rec := models.UserVoice{
		UserID:               userID,
		GuildID:              guildID,
		TimeInVoiceSeconds:   seconds,
		SessionsCount:        1,
		LastVoiceSession:     descriptor,
		MostUsedVoiceChannel: sess.channelName,
		LastUpdate:           now,
	}
	return v.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"time_in_voice_seconds":   gorm.Expr("user_voice.time_in_voice_seconds + ?", seconds),
			"sessions_count":          gorm.Expr("user_voice.sessions_count + 1"),
			"last_voice_session":      descriptor,
			"most_used_voice_channel": sess.channelName,
			"last_update":             now,
		}),
	}).Create(&rec).Error
}

// ActiveSessions 当前打开的会话数（监控用）
func (v *VoiceTracker) ActiveSessions() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.sessions)
}

// Get 读取语音聚合；不存在返回零值行
func (v *VoiceTracker) Get(ctx context.Context, userID, guildID int64) (models.UserVoice, error) {
	var uv models.UserVoice
	err := v.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&uv).Error
	if err == gorm.ErrRecordNotFound {
		return models.UserVoice{UserID: userID, GuildID: guildID}, nil
	}
	return uv, err
}

// FormatSeconds 人类可读的时长格式
func FormatSeconds(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
