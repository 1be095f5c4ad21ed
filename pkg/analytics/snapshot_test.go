package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/insightcord/insightcord/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrendDelta(t *testing.T) {
	assert.Equal(t, 0.0, TrendDelta(0, 0))
	assert.Equal(t, 100.0, TrendDelta(0, 5))
	assert.InDelta(t, -50.0, TrendDelta(10, 5), 1e-9)
	assert.InDelta(t, 100.0, TrendDelta(5, 10), 1e-9)
	assert.InDelta(t, -100.0, TrendDelta(10, 0), 1e-9)
}

func TestTopTopics(t *testing.T) {
	topics := map[string]int{"gaming": 3, "music": 7, "tech": 3, "art": 1}

	out := TopTopics(topics, 3)
	require.Len(t, out, 3)
	assert.Equal(t, TopicCount{Topic: "music", Count: 7}, out[0])
	// 计数相同按名字升序
	assert.Equal(t, TopicCount{Topic: "gaming", Count: 3}, out[1])
	assert.Equal(t, TopicCount{Topic: "tech", Count: 3}, out[2])

	assert.Empty(t, TopTopics(nil, 5))
}

func TestComposeFallbackScan(t *testing.T) {
	db := newTestDB(t)
	composer := NewSnapshotComposer(db, NewDailyCounterStore(db))

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	composer.SetClock(func() time.Time { return now })

	// 只有messages行、没有计数行的历史数据
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Message{
			UserID: 1, GuildID: 100, ChannelID: 5,
			Content: "hello", MessageLength: 5,
			Timestamp: now.AddDate(0, 0, -2),
		}).Error)
	}

	snap, err := composer.Compose(context.Background(), 100, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Messages.Last7d)
	assert.Equal(t, 3, snap.Messages.Last30d)
	assert.Equal(t, 0, snap.Messages.Today)
}

func TestComposeFull(t *testing.T) {
	db := newTestDB(t)
	daily := NewDailyCounterStore(db)
	composer := NewSnapshotComposer(db, daily)
	ctx := context.Background()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	composer.SetClock(func() time.Time { return now })

	joined := now.AddDate(0, -2, 0)
	require.NoError(t, db.Create(&models.User{
		UserID: 1, GuildID: 100, Username: "alice#1", JoinDate: &joined,
		Roles:    []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8"},
		IsActive: true,
	}).Error)

	// 近7天计10条，再往前7天计5条
	for i := 0; i < 10; i++ {
		require.NoError(t, daily.Increment(ctx, nil, 1, 100, models.DayOf(now)))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, daily.Increment(ctx, nil, 1, 100, models.DayOf(now.AddDate(0, 0, -8))))
	}

	last := now.Add(-time.Hour)
	require.NoError(t, db.Create(&models.UserActivity{
		UserID: 1, GuildID: 100, MessageCount: 15, AverageMessageLength: 42.5,
		MostUsedChannel: "general", LastMessageTime: &last,
		ReactionCount: 4, ReceivedReactions: 9,
	}).Error)
	require.NoError(t, db.Create(&models.UserActivity{
		UserID: 2, GuildID: 100, MessageCount: 50,
	}).Error)

	require.NoError(t, db.Create(&models.UserEngagement{
		UserID: 1, GuildID: 100, MentionsMade: 3, MentionsReceived: 6,
		ActiveDaysInMonth: 4, StreakDays: 1, EngagementScore: 31.5,
	}).Error)

	require.NoError(t, db.Create(&models.UserAIAnalysis{
		UserID: 1, GuildID: 100, DominantSentiment: models.SentimentPositive,
		TopicsOfInterest: map[string]int{"gaming": 5, "music": 2},
		ToxicityLevel:    0.12, CommunicationStyle: "concise",
	}).Error)

	require.NoError(t, db.Create(&models.UserVoice{
		UserID: 1, GuildID: 100, TimeInVoiceSeconds: 3720, SessionsCount: 2,
		MostUsedVoiceChannel: "Voice 1",
	}).Error)

	snap, err := composer.Compose(ctx, 100, 1)
	require.NoError(t, err)

	assert.Equal(t, "alice#1", snap.User.Username)
	assert.Len(t, snap.User.Roles, 6)

	assert.Equal(t, 10, snap.Messages.Today)
	assert.Equal(t, 10, snap.Messages.Last7d)
	assert.Equal(t, 15, snap.Messages.Last30d)
	// (10-5)/5
	assert.InDelta(t, 100.0, snap.Messages.Delta7, 1e-9)
	assert.Equal(t, 1, snap.Messages.StreakDays)
	assert.Equal(t, 15, snap.Messages.TotalCount)
	assert.Equal(t, "general", snap.Messages.LastChannel)
	// 消息量第二名，共2人
	assert.Equal(t, 2, snap.Messages.Rank)
	assert.Equal(t, 2, snap.Messages.RankTotal)

	assert.Equal(t, 3, snap.Engagement.MentionsMade)
	assert.Equal(t, 4, snap.Engagement.ReactionsGiven)
	assert.Equal(t, 9, snap.Engagement.ReactionsReceived)
	assert.InDelta(t, 31.5, snap.Engagement.Score, 1e-9)

	assert.Equal(t, models.SentimentPositive, snap.Signals.Sentiment)
	assert.InDelta(t, 0.12, snap.Signals.Toxicity, 1e-9)
	require.Len(t, snap.Signals.TopTopics, 2)
	assert.Equal(t, "gaming", snap.Signals.TopTopics[0].Topic)

	assert.Equal(t, int64(3720), snap.Voice.TotalSeconds)
	assert.Equal(t, "1h 02m", snap.Voice.TotalHuman)
}

func TestComposeMissingUser(t *testing.T) {
	db := newTestDB(t)
	composer := NewSnapshotComposer(db, NewDailyCounterStore(db))

	// 一切缺失时全部零值填充
	snap, err := composer.Compose(context.Background(), 100, 404)
	require.NoError(t, err)
	assert.Equal(t, models.UnknownUsername, snap.User.Username)
	assert.Equal(t, 0, snap.Messages.TotalCount)
	assert.Equal(t, models.SentimentNeutral, snap.Signals.Sentiment)
	assert.Nil(t, snap.Messages.PeakHour)
	assert.Equal(t, "0s", snap.Voice.TotalHuman)
}

func TestComposeGuildOverview(t *testing.T) {
	db := newTestDB(t)
	composer := NewSnapshotComposer(db, NewDailyCounterStore(db))

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	composer.SetClock(func() time.Time { return now })

	for _, u := range []models.User{
		{UserID: 1, GuildID: 100, Username: "a", IsActive: true},
		{UserID: 2, GuildID: 100, Username: "b", IsActive: true},
		{UserID: 3, GuildID: 100, Username: "c", IsActive: true},
	} {
		require.NoError(t, db.Create(&u).Error)
	}

	// 用户1近7天两条，用户2只有20天前一条，用户3潜水
	require.NoError(t, db.Create(&models.Message{UserID: 1, GuildID: 100, Timestamp: now.AddDate(0, 0, -1)}).Error)
	require.NoError(t, db.Create(&models.Message{UserID: 1, GuildID: 100, Timestamp: now.AddDate(0, 0, -2)}).Error)
	require.NoError(t, db.Create(&models.Message{UserID: 2, GuildID: 100, Timestamp: now.AddDate(0, 0, -20)}).Error)

	out, err := composer.ComposeGuildOverview(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, 3, out.TotalUsers)
	assert.Equal(t, 1, out.Active7d)
	assert.Equal(t, 2, out.Active30d)
	assert.Equal(t, 1, out.Lurkers30d)
	assert.Equal(t, 2, out.Messages7d)
	assert.InDelta(t, 2.0, out.AvgPerActive, 1e-9)
	require.Len(t, out.TopUsers, 1)
	assert.Equal(t, "a", out.TopUsers[0].Username)
	assert.Equal(t, 2, out.TopUsers[0].Count)
}
