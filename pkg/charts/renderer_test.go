package charts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/insightcord/insightcord/configs"
	"github.com/insightcord/insightcord/database"
	"github.com/insightcord/insightcord/models"
	"github.com/insightcord/insightcord/pkg/analytics"
	"github.com/insightcord/insightcord/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRenderer(t *testing.T) (*Renderer, *gorm.DB, *analytics.DailyCounterStore) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	daily := analytics.NewDailyCounterStore(db)
	r, err := NewRenderer(db, logger.NewNop(), daily, configs.Charts{
		OutputDir:   t.TempDir(),
		CacheTTLSec: 60,
	})
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r, db, daily
}

func TestThemeByName(t *testing.T) {
	assert.Equal(t, "light", ThemeByName("light").Name)
	assert.Equal(t, "dark", ThemeByName("dark").Name)
	// 未知名字回落深色
	assert.Equal(t, "dark", ThemeByName("neon").Name)
}

func TestRenderNoData(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	// 无数据不是错误，返回空路径
	for _, dataset := range []string{DatasetMessages, DatasetTopUsers, DatasetEngagement, DatasetSentiment} {
		path, err := r.Render(context.Background(), Request{Dataset: dataset, GuildID: 100})
		require.NoError(t, err, dataset)
		assert.Empty(t, path, dataset)
	}
}

func TestRenderUnknownDataset(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	_, err := r.Render(context.Background(), Request{Dataset: "bogus", GuildID: 100})
	assert.Error(t, err)
}

func TestRenderMessagesLine(t *testing.T) {
	r, _, daily := newTestRenderer(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		require.NoError(t, daily.Increment(ctx, nil, 1, 100, models.DayOf(now.AddDate(0, 0, -i))))
	}

	path, err := r.Render(ctx, Request{Dataset: DatasetMessages, GuildID: 100, Days: 7})
	require.NoError(t, err)
	require.NotEmpty(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// 60秒缓存窗口内重复请求拿到同一文件
	again, err := r.Render(ctx, Request{Dataset: DatasetMessages, GuildID: 100, Days: 7})
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestRenderTopUsersAndSentiment(t *testing.T) {
	r, db, _ := newTestRenderer(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.User{UserID: 1, GuildID: 100, Username: "alice#1"}).Error)
	require.NoError(t, db.Create(&models.UserActivity{UserID: 1, GuildID: 100, MessageCount: 12}).Error)
	require.NoError(t, db.Create(&models.UserAIAnalysis{
		UserID: 1, GuildID: 100, DominantSentiment: models.SentimentPositive,
	}).Error)

	path, err := r.Render(ctx, Request{Dataset: DatasetTopUsers, GuildID: 100, Theme: "light"})
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	path, err = r.Render(ctx, Request{Dataset: DatasetSentiment, GuildID: 100})
	require.NoError(t, err)
	assert.NotEmpty(t, path)
}
