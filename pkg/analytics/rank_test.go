package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	// 空人群
	assert.Equal(t, 0.0, Normalize(nil, 10))

	// 全员相同
	uniform := []float64{5, 5, 5}
	assert.Equal(t, 50.0, Normalize(uniform, 5))

	// 极值落在两端
	values := []float64{0, 50, 100}
	assert.Equal(t, 0.0, Normalize(values, 0))
	assert.Equal(t, 100.0, Normalize(values, 100))
	assert.Equal(t, 50.0, Normalize(values, 50))

	// 人群外的值被截断
	assert.Equal(t, 0.0, Normalize(values, -20))
	assert.Equal(t, 100.0, Normalize(values, 200))
}

func TestPickTier(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{95, "Mythic"},
		{90, "Mythic"},
		{89.9, "Diamond"},
		{80, "Diamond"},
		{70, "Platinum"},
		{60, "Gold"},
		{45, "Silver"},
		{44.9, "Bronze"},
		{0, "Bronze"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, PickTier(c.score).Name, "score=%v", c.score)
	}
}

func TestNextTier(t *testing.T) {
	// 顶级无下一级
	assert.Nil(t, NextTier(95))
	assert.Nil(t, NextTier(90))

	next := NextTier(50)
	assert.NotNil(t, next)
	assert.Equal(t, "Gold", next.Name)

	next = NextTier(0)
	assert.NotNil(t, next)
	assert.Equal(t, "Silver", next.Name)
}

func TestPositivity(t *testing.T) {
	assert.Equal(t, 100.0, Positivity(0))
	assert.Equal(t, 0.0, Positivity(1))
	assert.InDelta(t, 70.0, Positivity(0.3), 1e-9)
	// 越界毒性被截断
	assert.Equal(t, 100.0, Positivity(-0.5))
	assert.Equal(t, 0.0, Positivity(1.5))
}

func TestCompositeScore(t *testing.T) {
	assert.InDelta(t, 100.0, CompositeScore(100, 0), 1e-9)
	assert.InDelta(t, 0.0, CompositeScore(0, 1), 1e-9)
	// 0.7*50 + 0.3*50
	assert.InDelta(t, 50.0, CompositeScore(50, 0.5), 1e-9)
}

func TestLeaderboard(t *testing.T) {
	profiles := []Profile{
		{UserID: 1, Username: "a", Engagement: 10, Toxicity: 0},
		{UserID: 2, Username: "b", Engagement: 50, Toxicity: 0.9},
		{UserID: 3, Username: "c", Engagement: 100, Toxicity: 0},
	}

	board := Leaderboard(profiles)
	assert.Len(t, board, 3)

	// 排名从1起且按综合分降序
	assert.Equal(t, int64(3), board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, 3, board[2].Rank)
	assert.True(t, board[0].Score >= board[1].Score)
	assert.True(t, board[1].Score >= board[2].Score)

	// 最高参与+零毒性应拿满分
	assert.InDelta(t, 100.0, board[0].Score, 1e-9)
	assert.Equal(t, "Mythic", board[0].Tier.Name)
}

func TestLeaderboardStableTies(t *testing.T) {
	// 完全相同的画像按输入顺序保持稳定
	profiles := []Profile{
		{UserID: 1, Engagement: 5},
		{UserID: 2, Engagement: 5},
		{UserID: 3, Engagement: 5},
	}
	board := Leaderboard(profiles)
	assert.Equal(t, int64(1), board[0].UserID)
	assert.Equal(t, int64(2), board[1].UserID)
	assert.Equal(t, int64(3), board[2].UserID)
}

func TestRankOfMissingUser(t *testing.T) {
	db := newTestDB(t)
	engine := NewRankEngine(db)

	// 空人群
	_, ok, err := engine.RankOf(context.Background(), 42, 7)
	assert.NoError(t, err)
	assert.False(t, ok)
}
