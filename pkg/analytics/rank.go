package analytics

import (
	"context"
	"sort"

	"github.com/insightcord/insightcord/models"

	"gorm.io/gorm"
)

// Tier 段位
type Tier struct {
	Name     string  `json:"name"`
	MinScore float64 `json:"minScore"`
	Color    int     `json:"color"`
	Emoji    string  `json:"emoji"`
}

// Tiers 段位阈值，从高到低
var Tiers = []Tier{
	{"Mythic", 90.0, 0x9b59b6, "🌌"},
	{"Diamond", 80.0, 0x00d2ff, "💎"},
	{"Platinum", 70.0, 0x7fdbff, "🔷"},
	{"Gold", 60.0, 0xf1c40f, "🥇"},
	{"Silver", 45.0, 0xbdc3c7, "🥈"},
	{"Bronze", 0.0, 0xcd7f32, "🥉"},
}

// PickTier 返回分数达到的最高段位
func PickTier(score float64) Tier {
	for _, t := range Tiers {
		if score >= t.MinScore {
			return t
		}
	}
	return Tiers[len(Tiers)-1]
}

// NextTier 返回阈值严格高于当前分数的最低段位；已达顶级时返回nil
func NextTier(score float64) *Tier {
	var next *Tier
	for i := range Tiers {
		if score < Tiers[i].MinScore {
			next = &Tiers[i]
		}
	}
	return next
}

// Normalize 对参与度做min-max归一化到 [0, 100]。
// 全员相同（含空集之外的退化情形）时所有人都是50，避免除零也避免给
// 均质人群排出人为的高低。
func Normalize(values []float64, x float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	vmin, vmax := values[0], values[0]
	for _, v := range values[1:] {
		if v < vmin {
			vmin = v
		}
		if v > vmax {
			vmax = v
		}
	}
	if vmax <= vmin {
		return 50.0
	}
	n := (x - vmin) * 100.0 / (vmax - vmin)
	if n < 0 {
		return 0.0
	}
	if n > 100 {
		return 100.0
	}
	return n
}

// Positivity 毒性的互补值，0~100
func Positivity(toxicity float64) float64 {
	p := 1.0 - toxicity
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p * 100.0
}

// CompositeScore 综合评分 = 70%归一化参与度 + 30%积极度
func CompositeScore(engagementNorm, toxicity float64) float64 {
	return 0.7*engagementNorm + 0.3*Positivity(toxicity)
}

// Profile 参与排名的成员画像
type Profile struct {
	UserID     int64   `json:"userId"`
	Username   string  `json:"username"`
	Engagement float64 `json:"engagement"`
	Toxicity   float64 `json:"toxicity"`
}

// Ranked 排名结果
type Ranked struct {
	Profile
	EngagementNorm float64 `json:"engagementNorm"`
	Score          float64 `json:"score"`
	Rank           int     `json:"rank"`
	Tier           Tier    `json:"tier"`
}

// RankEngine 服务器内的相对排名引擎
type RankEngine struct {
	db *gorm.DB
}

// NewRankEngine 创建排名引擎
func NewRankEngine(db *gorm.DB) *RankEngine {
	return &RankEngine{db: db}
}

// FetchProfiles 读取全员 (engagement, toxicity)，缺失的聚合按0处理
func (r *RankEngine) FetchProfiles(ctx context.Context, guildID int64) ([]Profile, error) {
	var profiles []Profile
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select(`users.user_id,
			users.username,
			COALESCE(user_engagement.engagement_score, 0) AS engagement,
			COALESCE(user_ai_analysis.toxicity_level, 0) AS toxicity`).
		Joins(`LEFT JOIN user_engagement ON user_engagement.user_id = users.user_id AND user_engagement.guild_id = users.guild_id`).
		Joins(`LEFT JOIN user_ai_analysis ON user_ai_analysis.user_id = users.user_id AND user_ai_analysis.guild_id = users.guild_id`).
		Where("users.guild_id = ?", guildID).
		Scan(&profiles).Error
	return profiles, err
}

// Leaderboard 按综合评分降序的稳定排序，并列按原始顺序，rank从1起
func Leaderboard(profiles []Profile) []Ranked {
	values := make([]float64, len(profiles))
	for i, p := range profiles {
		values[i] = p.Engagement
	}

	ranked := make([]Ranked, len(profiles))
	for i, p := range profiles {
		norm := Normalize(values, p.Engagement)
		score := CompositeScore(norm, p.Toxicity)
		ranked[i] = Ranked{
			Profile:        p,
			EngagementNorm: norm,
			Score:          score,
			Tier:           PickTier(score),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// RankOf 单个用户在服务器中的排名；人群为空时ok为false
func (r *RankEngine) RankOf(ctx context.Context, guildID, userID int64) (Ranked, bool, error) {
	profiles, err := r.FetchProfiles(ctx, guildID)
	if err != nil {
		return Ranked{}, false, err
	}
	if len(profiles) == 0 {
		return Ranked{}, false, nil
	}
	board := Leaderboard(profiles)
	for _, entry := range board {
		if entry.UserID == userID {
			return entry, true, nil
		}
	}
	// 用户无任何记录：按全0画像计算但不在榜单内
	values := make([]float64, len(profiles))
	for i, p := range profiles {
		values[i] = p.Engagement
	}
	norm := Normalize(values, 0)
	score := CompositeScore(norm, 0)
	return Ranked{
		Profile:        Profile{UserID: userID},
		EngagementNorm: norm,
		Score:          score,
		Rank:           len(board) + 1,
		Tier:           PickTier(score),
	}, true, nil
}
