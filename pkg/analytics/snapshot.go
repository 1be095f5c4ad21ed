package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/insightcord/insightcord/models"

	"gorm.io/gorm"
)

// ChannelCount 频道与消息数
type ChannelCount struct {
	ChannelID int64 `json:"channelId"`
	Count     int   `json:"count"`
}

// TopicCount 话题与计数
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Snapshot 单用户的去范式化视图（只读拼装，供报表使用）
type Snapshot struct {
	User struct {
		ID        int64      `json:"id"`
		Username  string     `json:"username"`
		AvatarURL string     `json:"avatarUrl"`
		JoinDate  *time.Time `json:"joinDate"`
		Roles     []string   `json:"roles"`
	} `json:"user"`

	Messages struct {
		Today       int            `json:"today"`
		Last7d      int            `json:"last7d"`
		Last30d     int            `json:"last30d"`
		Delta7      float64        `json:"delta7"` // 近7天相对前7天的百分比变化
		StreakDays  int            `json:"streakDays"`
		TotalCount  int            `json:"totalCount"`
		AvgLength   float64        `json:"avgLength"`
		LastChannel string         `json:"lastChannel"` // 最后所见频道（非频率最高）
		LastTime    *time.Time     `json:"lastTime"`
		TopChannels []ChannelCount `json:"topChannels"` // 按历史频率
		PeakHour    *int           `json:"peakHour"`
		Rank        int            `json:"rank"`
		RankTotal   int            `json:"rankTotal"`
	} `json:"messages"`

	Engagement struct {
		MentionsMade      int     `json:"mentionsMade"`
		MentionsReceived  int     `json:"mentionsReceived"`
		ReactionsGiven    int     `json:"reactionsGiven"`
		ReactionsReceived int     `json:"reactionsReceived"`
		ThreadsCreated    int     `json:"threadsCreated"`
		InvitationsSent   int     `json:"invitationsSent"`
		ActiveDaysInMonth int     `json:"activeDaysInMonth"`
		StreakDays        int     `json:"streakDays"`
		Score             float64 `json:"score"`
	} `json:"engagement"`

	Signals struct {
		Toxicity  float64      `json:"toxicity"`
		Sentiment string       `json:"sentiment"`
		TopTopics []TopicCount `json:"topTopics"`
		Style     string       `json:"style"`
	} `json:"signals"`

	Voice struct {
		TotalSeconds int64  `json:"totalSeconds"`
		TotalHuman   string `json:"totalHuman"`
		Sessions     int    `json:"sessions"`
		LastChannel  string `json:"lastChannel"`
	} `json:"voice"`
}

// SnapshotComposer 读侧聚合拼装器；该路径不产生任何写入。
type SnapshotComposer struct {
	db    *gorm.DB
	daily *DailyCounterStore
	now   func() time.Time
}

// NewSnapshotComposer 创建拼装器
func NewSnapshotComposer(db *gorm.DB, daily *DailyCounterStore) *SnapshotComposer {
	return &SnapshotComposer{db: db, daily: daily, now: time.Now}
}

// SetClock 注入时钟（测试用）
func (s *SnapshotComposer) SetClock(now func() time.Time) { s.now = now }

// TrendDelta 近7天相对前7天的百分比变化。
// 两个窗口都为0时取0；仅前窗为0时取100。
func TrendDelta(prev, curr int) float64 {
	if prev == 0 && curr == 0 {
		return 0.0
	}
	if prev == 0 {
		return 100.0
	}
	return float64(curr-prev) * 100.0 / float64(prev)
}

// sumWindow 近days天的消息数；计数表为空时回退到messages全表扫描
func (s *SnapshotComposer) sumWindow(ctx context.Context, userID, guildID int64, days int) (int, error) {
	if days <= 0 {
		return 0, nil
	}
	today := s.now().UTC()
	from := today.AddDate(0, 0, -(days - 1))

	total, err := s.daily.SumRange(ctx, nil, userID, guildID,
		from.Format(models.DayLayout), models.DayOf(today))
	if err != nil {
		return 0, err
	}
	if total > 0 {
		return total, nil
	}

	// 回退：计数行缺失的历史时期直接数消息
	var count int64
	err = s.db.WithContext(ctx).Model(&models.Message{}).
		Where("user_id = ? AND guild_id = ? AND timestamp >= ? AND timestamp < ?",
			userID, guildID,
			time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC),
			time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)).
		Count(&count).Error
	return int(count), err
}

// messageRank 按原始消息量的名次（1 + 比我多的人数）；无聚合行时rank为0
func (s *SnapshotComposer) messageRank(ctx context.Context, userID, guildID int64) (int, int, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.UserActivity{}).
		Where("guild_id = ?", guildID).Count(&total).Error; err != nil {
		return 0, 0, err
	}

	var ua models.UserActivity
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&ua).Error
	if err == gorm.ErrRecordNotFound || total == 0 {
		return 0, int(total), nil
	}
	if err != nil {
		return 0, 0, err
	}

	var above int64
	err = s.db.WithContext(ctx).Model(&models.UserActivity{}).
		Where("guild_id = ? AND message_count > ?", guildID, ua.MessageCount).
		Count(&above).Error
	return int(above) + 1, int(total), err
}

// topChannels 按历史消息量的前limit个频道
func (s *SnapshotComposer) topChannels(ctx context.Context, userID, guildID int64, limit int) ([]ChannelCount, error) {
	var rows []ChannelCount
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("channel_id, COUNT(*) AS count").
		Where("user_id = ? AND guild_id = ? AND channel_id <> 0", userID, guildID).
		Group("channel_id").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// peakHour 消息时间戳按小时取众数；无消息时返回nil
func (s *SnapshotComposer) peakHour(ctx context.Context, userID, guildID int64) (*int, error) {
	var times []time.Time
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Pluck("timestamp", &times).Error
	if err != nil || len(times) == 0 {
		return nil, err
	}
	hist := make(map[int]int)
	for _, t := range times {
		hist[t.UTC().Hour()]++
	}
	best, bestCount := 0, 0
	for h, c := range hist {
		if c > bestCount || (c == bestCount && h < best) {
			best, bestCount = h, c
		}
	}
	return &best, nil
}

// TopTopics 话题计数降序取前limit个
func TopTopics(topics map[string]int, limit int) []TopicCount {
	out := make([]TopicCount, 0, len(topics))
	for k, v := range topics {
		out = append(out, TopicCount{Topic: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Compose 拼装完整的用户快照。缺失的聚合一律按零值填充，不视为错误。
func (s *SnapshotComposer) Compose(ctx context.Context, guildID, userID int64) (*Snapshot, error) {
	snap := &Snapshot{}
	snap.User.ID = userID
	snap.User.Username = models.UnknownUsername

	var user models.User
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&user).Error; err == nil {
		snap.User.Username = user.Username
		snap.User.AvatarURL = user.AvatarURL
		snap.User.JoinDate = user.JoinDate
		roles := user.Roles
		if len(roles) > 6 {
			roles = roles[:6]
		}
		snap.User.Roles = roles
	}

	today, err := s.sumWindow(ctx, userID, guildID, 1)
	if err != nil {
		return nil, err
	}
	last7, err := s.sumWindow(ctx, userID, guildID, 7)
	if err != nil {
		return nil, err
	}
	last30, err := s.sumWindow(ctx, userID, guildID, 30)
	if err != nil {
		return nil, err
	}
	snap.Messages.Today = today
	snap.Messages.Last7d = last7
	snap.Messages.Last30d = last30

	// 趋势：当前7天 vs 之前7天（都来自计数表，不做回退）
	nowDay := s.now().UTC()
	curr7, err := s.daily.SumRange(ctx, nil, userID, guildID,
		nowDay.AddDate(0, 0, -6).Format(models.DayLayout), models.DayOf(nowDay))
	if err != nil {
		return nil, err
	}
	prev7, err := s.daily.SumRange(ctx, nil, userID, guildID,
		nowDay.AddDate(0, 0, -13).Format(models.DayLayout),
		nowDay.AddDate(0, 0, -7).Format(models.DayLayout))
	if err != nil {
		return nil, err
	}
	snap.Messages.Delta7 = TrendDelta(prev7, curr7)

	lookback := nowDay.AddDate(0, 0, -streakLookbackDays)
	recentDays, err := s.daily.ActiveDays(ctx, nil, userID, guildID,
		lookback.Format(models.DayLayout), models.DayOf(nowDay))
	if err != nil {
		return nil, err
	}
	snap.Messages.StreakDays = StreakEndingAt(recentDays, nowDay)

	var ua models.UserActivity
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&ua).Error; err == nil {
		snap.Messages.TotalCount = ua.MessageCount
		snap.Messages.AvgLength = ua.AverageMessageLength
		snap.Messages.LastChannel = ua.MostUsedChannel
		snap.Messages.LastTime = ua.LastMessageTime
		snap.Engagement.ReactionsGiven = ua.ReactionCount
		snap.Engagement.ReactionsReceived = ua.ReceivedReactions
	}

	rank, total, err := s.messageRank(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	snap.Messages.Rank = rank
	snap.Messages.RankTotal = total

	topCh, err := s.topChannels(ctx, userID, guildID, 3)
	if err != nil {
		return nil, err
	}
	snap.Messages.TopChannels = topCh

	peak, err := s.peakHour(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	snap.Messages.PeakHour = peak

	var ue models.UserEngagement
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&ue).Error; err == nil {
		snap.Engagement.MentionsMade = ue.MentionsMade
		snap.Engagement.MentionsReceived = ue.MentionsReceived
		snap.Engagement.ThreadsCreated = ue.ThreadsCreated
		snap.Engagement.InvitationsSent = ue.InvitationsSent
		snap.Engagement.ActiveDaysInMonth = ue.ActiveDaysInMonth
		snap.Engagement.StreakDays = ue.StreakDays
		snap.Engagement.Score = ue.EngagementScore
	}

	snap.Signals.Sentiment = models.SentimentNeutral
	var ai models.UserAIAnalysis
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&ai).Error; err == nil {
		snap.Signals.Toxicity = ai.ToxicityLevel
		if ai.DominantSentiment != "" {
			snap.Signals.Sentiment = ai.DominantSentiment
		}
		snap.Signals.TopTopics = TopTopics(ai.TopicsOfInterest, 5)
		snap.Signals.Style = ai.CommunicationStyle
	}

	var uv models.UserVoice
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&uv).Error; err == nil {
		snap.Voice.TotalSeconds = uv.TimeInVoiceSeconds
		snap.Voice.Sessions = uv.SessionsCount
		snap.Voice.LastChannel = uv.MostUsedVoiceChannel
	}
	snap.Voice.TotalHuman = FormatSeconds(snap.Voice.TotalSeconds)

	return snap, nil
}

// GuildOverview 服务器级的参与概览（管理端）
type GuildOverview struct {
	TotalUsers   int     `json:"totalUsers"`
	Active7d     int     `json:"active7d"`
	Active30d    int     `json:"active30d"`
	Lurkers30d   int     `json:"lurkers30d"`
	Messages7d   int     `json:"messages7d"`
	AvgPerActive float64 `json:"avgPerActive"`
	TopUsers     []struct {
		Username string `json:"username"`
		Count    int    `json:"count"`
	} `json:"topUsers"`
}

// ComposeGuildOverview 活跃/潜水统计与近7天Top5
func (s *SnapshotComposer) ComposeGuildOverview(ctx context.Context, guildID int64) (*GuildOverview, error) {
	out := &GuildOverview{}
	now := s.now().UTC()
	since7 := now.AddDate(0, 0, -7)
	since30 := now.AddDate(0, 0, -30)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("guild_id = ? AND is_active = ?", guildID, true).
		Count(&total).Error; err != nil {
		return nil, err
	}
	out.TotalUsers = int(total)

	var active7 int64
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("guild_id = ? AND timestamp >= ?", guildID, since7).
		Distinct("user_id").Count(&active7).Error; err != nil {
		return nil, err
	}
	out.Active7d = int(active7)

	var active30 int64
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("guild_id = ? AND timestamp >= ?", guildID, since30).
		Distinct("user_id").Count(&active30).Error; err != nil {
		return nil, err
	}
	out.Active30d = int(active30)

	out.Lurkers30d = out.TotalUsers - out.Active30d
	if out.Lurkers30d < 0 {
		out.Lurkers30d = 0
	}

	var msgs7 int64
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("guild_id = ? AND timestamp >= ?", guildID, since7).
		Count(&msgs7).Error; err != nil {
		return nil, err
	}
	out.Messages7d = int(msgs7)
	if out.Active7d > 0 {
		out.AvgPerActive = float64(out.Messages7d) / float64(out.Active7d)
	}

	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("users.username AS username, COUNT(*) AS count").
		Joins("JOIN users ON users.user_id = messages.user_id AND users.guild_id = messages.guild_id").
		Where("messages.guild_id = ? AND messages.timestamp >= ?", guildID, since7).
		Group("users.username").
		Order("count DESC").
		Limit(5).
		Scan(&out.TopUsers).Error
	return out, err
}
