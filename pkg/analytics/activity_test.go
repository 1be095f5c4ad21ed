package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMessageOnlineMean(t *testing.T) {
	db := newTestDB(t)
	daily := NewDailyCounterStore(db)
	agg := NewActivityAggregator(db, daily)
	ctx := context.Background()

	when := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	require.NoError(t, agg.RecordMessage(ctx, nil, 1, 100, "general", 10, when))
	require.NoError(t, agg.RecordMessage(ctx, nil, 1, 100, "random", 20, when.Add(time.Minute)))
	require.NoError(t, agg.RecordMessage(ctx, nil, 1, 100, "random", 60, when.Add(2*time.Minute)))

	ua, err := agg.Get(ctx, nil, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, ua.MessageCount)
	assert.InDelta(t, 30.0, ua.AverageMessageLength, 1e-9)
	// 最后所见频道语义
	assert.Equal(t, "random", ua.MostUsedChannel)
	require.NotNil(t, ua.LastMessageTime)
	assert.WithinDuration(t, when.Add(2*time.Minute), *ua.LastMessageTime, time.Second)

	// 当日计数同步自增
	total, err := daily.SumRange(ctx, nil, 1, 100, "2026-08-30", "2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestRecordReaction(t *testing.T) {
	db := newTestDB(t)
	agg := NewActivityAggregator(db, NewDailyCounterStore(db))
	ctx := context.Background()

	require.NoError(t, agg.RecordReaction(ctx, nil, 1, 2, 100))
	require.NoError(t, agg.RecordReaction(ctx, nil, 1, 2, 100))

	reactor, err := agg.Get(ctx, nil, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, reactor.ReactionCount)
	assert.Equal(t, 0, reactor.ReceivedReactions)

	author, err := agg.Get(ctx, nil, 2, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, author.ReceivedReactions)
	assert.Equal(t, 0, author.ReactionCount)

	// 作者侧为0时只记回应者
	require.NoError(t, agg.RecordReaction(ctx, nil, 1, 0, 100))
	reactor, err = agg.Get(ctx, nil, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, reactor.ReactionCount)
}

func TestGetMissingReturnsZeroRow(t *testing.T) {
	db := newTestDB(t)
	agg := NewActivityAggregator(db, NewDailyCounterStore(db))

	ua, err := agg.Get(context.Background(), nil, 9, 900)
	require.NoError(t, err)
	assert.Equal(t, int64(9), ua.UserID)
	assert.Equal(t, 0, ua.MessageCount)
}
