package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/insightcord/insightcord/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoiceJoinLeave(t *testing.T) {
	db := newTestDB(t)
	tracker := NewVoiceTracker(db)
	ctx := context.Background()

	now := time.Date(2026, 8, 30, 20, 0, 0, 0, time.UTC)
	tracker.SetClock(func() time.Time { return now })

	require.NoError(t, tracker.HandleEvent(ctx, models.VoiceEvent{
		UserID: 1, GuildID: 100, Action: models.VoiceJoin, ChannelID: 7, ChannelName: "Voice 1",
	}))
	assert.Equal(t, 1, tracker.ActiveSessions())

	now = now.Add(90 * time.Second)
	require.NoError(t, tracker.HandleEvent(ctx, models.VoiceEvent{
		UserID: 1, GuildID: 100, Action: models.VoiceLeave,
	}))
	assert.Equal(t, 0, tracker.ActiveSessions())

	uv, err := tracker.Get(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(90), uv.TimeInVoiceSeconds)
	assert.Equal(t, 1, uv.SessionsCount)
	assert.Equal(t, "Voice 1", uv.MostUsedVoiceChannel)
}

func TestVoiceLeaveWithoutJoin(t *testing.T) {
	db := newTestDB(t)
	tracker := NewVoiceTracker(db)

	// 没有打开的会话时leave是安全的no-op
	require.NoError(t, tracker.HandleEvent(context.Background(), models.VoiceEvent{
		UserID: 1, GuildID: 100, Action: models.VoiceLeave,
	}))

	var count int64
	require.NoError(t, db.Model(&models.UserVoice{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestVoiceSwitch(t *testing.T) {
	db := newTestDB(t)
	tracker := NewVoiceTracker(db)
	ctx := context.Background()

	now := time.Date(2026, 8, 30, 20, 0, 0, 0, time.UTC)
	tracker.SetClock(func() time.Time { return now })

	require.NoError(t, tracker.HandleEvent(ctx, models.VoiceEvent{
		UserID: 1, GuildID: 100, Action: models.VoiceJoin, ChannelID: 7, ChannelName: "Voice 1",
	}))

	// 换频道：关旧开新
	now = now.Add(60 * time.Second)
	require.NoError(t, tracker.HandleEvent(ctx, models.VoiceEvent{
		UserID: 1, GuildID: 100, Action: models.VoiceSwitch, ChannelID: 8, ChannelName: "Voice 2",
	}))
	assert.Equal(t, 1, tracker.ActiveSessions())

	now = now.Add(90 * time.Second)
	require.NoError(t, tracker.HandleEvent(ctx, models.VoiceEvent{
		UserID: 1, GuildID: 100, Action: models.VoiceLeave,
	}))

	uv, err := tracker.Get(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(150), uv.TimeInVoiceSeconds)
	assert.Equal(t, 2, uv.SessionsCount)
	assert.Equal(t, "Voice 2", uv.MostUsedVoiceChannel)
}

func TestVoiceUnknownAction(t *testing.T) {
	tracker := NewVoiceTracker(nil)
	err := tracker.HandleEvent(context.Background(), models.VoiceEvent{
		UserID: 1, GuildID: 100, Action: "mute",
	})
	assert.Error(t, err)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0s", FormatSeconds(0))
	assert.Equal(t, "45s", FormatSeconds(45))
	assert.Equal(t, "2m 05s", FormatSeconds(125))
	assert.Equal(t, "1h 02m", FormatSeconds(3720))
	assert.Equal(t, "0s", FormatSeconds(-10))
}
