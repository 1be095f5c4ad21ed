package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/insightcord/insightcord/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementConverges(t *testing.T) {
	db := newTestDB(t)
	store := NewDailyCounterStore(db)
	ctx := context.Background()

	// N个并发自增后计数正好是N
	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Increment(ctx, nil, 1, 100, "2026-08-30")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var rec models.UserMessageDaily
	require.NoError(t, db.Where("user_id = ? AND guild_id = ? AND day = ?", 1, 100, "2026-08-30").First(&rec).Error)
	assert.Equal(t, n, rec.Count)
}

func TestSumRangeAndActiveDays(t *testing.T) {
	db := newTestDB(t)
	store := NewDailyCounterStore(db)
	ctx := context.Background()

	days := []string{"2026-08-25", "2026-08-27", "2026-08-28"}
	for _, d := range days {
		require.NoError(t, store.Increment(ctx, nil, 1, 100, d))
		require.NoError(t, store.Increment(ctx, nil, 1, 100, d))
	}
	// 别的用户不应掺进来
	require.NoError(t, store.Increment(ctx, nil, 2, 100, "2026-08-27"))

	total, err := store.SumRange(ctx, nil, 1, 100, "2026-08-25", "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 6, total)

	// 闭区间边界
	total, err = store.SumRange(ctx, nil, 1, 100, "2026-08-26", "2026-08-27")
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// 无记录返回0
	total, err = store.SumRange(ctx, nil, 9, 100, "2026-08-01", "2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	active, err := store.ActiveDays(ctx, nil, 1, 100, "2026-08-01", "2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, days, active)
}

func TestGuildDailyTotals(t *testing.T) {
	db := newTestDB(t)
	store := NewDailyCounterStore(db)
	ctx := context.Background()

	require.NoError(t, store.Increment(ctx, nil, 1, 100, "2026-08-29"))
	require.NoError(t, store.Increment(ctx, nil, 2, 100, "2026-08-29"))
	require.NoError(t, store.Increment(ctx, nil, 1, 100, "2026-08-30"))
	require.NoError(t, store.Increment(ctx, nil, 3, 200, "2026-08-30"))

	totals, err := store.GuildDailyTotals(ctx, 100, "2026-08-29")
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, DailyTotal{Day: "2026-08-29", Total: 2}, totals[0])
	assert.Equal(t, DailyTotal{Day: "2026-08-30", Total: 1}, totals[1])
}

func TestStreakEndingAt(t *testing.T) {
	today := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// 今天没发言就没有streak
	assert.Equal(t, 0, StreakEndingAt([]string{"2026-08-29", "2026-08-28"}, today))

	// 断档在中间
	assert.Equal(t, 2, StreakEndingAt([]string{"2026-08-30", "2026-08-29", "2026-08-27"}, today))

	// 连续5天
	days := []string{"2026-08-26", "2026-08-27", "2026-08-28", "2026-08-29", "2026-08-30"}
	assert.Equal(t, 5, StreakEndingAt(days, today))

	assert.Equal(t, 0, StreakEndingAt(nil, today))
}
