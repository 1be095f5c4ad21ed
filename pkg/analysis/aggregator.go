package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/insightcord/insightcord/models"
	"github.com/insightcord/insightcord/pkg/analytics"
	"github.com/insightcord/insightcord/pkg/logger"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 毒性融合系数：上升放大，下降衰减
const (
	toxicityRiseFactor  = 1.8
	toxicityDecayFactor = 0.3
)

// minAnalyzeChars 去掉首尾空白后低于该长度的文本直接跳过
const minAnalyzeChars = 2

// rebuildParallelism 全量重建时的并发上限
const rebuildParallelism = 4

// FuseToxicity 非对称毒性平滑
func FuseToxicity(previous, next float64) float64 {
	delta := next - previous
	if delta > 0 {
		return clamp01(previous + delta*toxicityRiseFactor)
	}
	return clamp01(previous + delta*toxicityDecayFactor)
}

// Aggregator 内容信号聚合器：调用外部分类器，自己持有平滑/融合逻辑。
type Aggregator struct {
	db         *gorm.DB
	log        *logger.Logger
	classifier Classifier
	now        func() time.Time
}

// NewAggregator 创建聚合器
func NewAggregator(db *gorm.DB, log *logger.Logger, classifier Classifier) *Aggregator {
	return &Aggregator{
		db:         db,
		log:        log.With("component", "signals"),
		classifier: classifier,
		now:        time.Now,
	}
}

// SetClock 注入时钟（测试用）
func (a *Aggregator) SetClock(now func() time.Time) { a.now = now }

// ensureGuildAndUser 惰性补齐外键行
func (a *Aggregator) ensureGuildAndUser(ctx context.Context, tx *gorm.DB, userID, guildID int64) error {
	g := models.Guild{
		GuildID:    guildID,
		GuildName:  fmt.Sprintf("Guild %d", guildID),
		LastUpdate: a.now().UTC(),
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		DoNothing: true,
	}).Create(&g).Error
	if err != nil {
		return err
	}
	return analytics.EnsureUser(ctx, tx, userID, guildID, "")
}

// UpdateSignals 用一条消息更新内容信号：
//   - 毒性走非对称平滑
//   - 主导情感覆盖为最新标签
//   - 话题计数单调累加
//   - 表达风格覆盖为最新分类
//
// 文本太短时整体跳过。分类器内部已做远程失败兜底，这里只处理持久化错误。
func (a *Aggregator) UpdateSignals(ctx context.Context, userID, guildID int64, text string) error {
	if len(strings.TrimSpace(text)) < minAnalyzeChars {
		return nil
	}

	result, err := a.classifier.Classify(ctx, text)
	if err != nil {
		return err
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := a.ensureGuildAndUser(ctx, tx, userID, guildID); err != nil {
			return err
		}

		var ai models.UserAIAnalysis
		err := tx.WithContext(ctx).
			Where("user_id = ? AND guild_id = ?", userID, guildID).
			First(&ai).Error
		if err == gorm.ErrRecordNotFound {
			ai = models.UserAIAnalysis{
				UserID:            userID,
				GuildID:           guildID,
				DominantSentiment: models.SentimentNeutral,
				TopicsOfInterest:  map[string]int{},
			}
		} else if err != nil {
			return err
		}

		ai.ToxicityLevel = FuseToxicity(ai.ToxicityLevel, result.Toxicity)
		ai.DominantSentiment = result.SentimentLabel

		if ai.TopicsOfInterest == nil {
			ai.TopicsOfInterest = map[string]int{}
		}
		for topic, n := range result.Topics {
			ai.TopicsOfInterest[topic] += n
		}

		ai.CommunicationStyle = result.Style
		ai.LastAnalysis = a.now().UTC()

		return tx.WithContext(ctx).Save(&ai).Error
	})
}

// Get 读取内容信号聚合；不存在返回中性默认行
func (a *Aggregator) Get(ctx context.Context, userID, guildID int64) (models.UserAIAnalysis, error) {
	var ai models.UserAIAnalysis
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		First(&ai).Error
	if err == gorm.ErrRecordNotFound {
		return models.UserAIAnalysis{
			UserID:            userID,
			GuildID:           guildID,
			DominantSentiment: models.SentimentNeutral,
			TopicsOfInterest:  map[string]int{},
		}, nil
	}
	return ai, err
}

// RebuildForUser 将四个信号字段重置为默认值，再按时间顺序回放该用户的
// 全部历史消息。对同一份历史重复执行得到相同终态。
func (a *Aggregator) RebuildForUser(ctx context.Context, userID, guildID int64) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := a.ensureGuildAndUser(ctx, tx, userID, guildID); err != nil {
			return err
		}
		ai := models.UserAIAnalysis{
			UserID:            userID,
			GuildID:           guildID,
			DominantSentiment: models.SentimentNeutral,
			TopicsOfInterest:  map[string]int{},
			LastAnalysis:      a.now().UTC(),
		}
		return tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"toxicity_level":      0.0,
				"dominant_sentiment":  models.SentimentNeutral,
				"topics_of_interest":  "{}",
				"communication_style": "",
			}),
		}).Create(&ai).Error
	})
	if err != nil {
		return err
	}

	var messages []models.Message
	err = a.db.WithContext(ctx).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Order("timestamp ASC").
		Find(&messages).Error
	if err != nil {
		return err
	}

	for _, m := range messages {
		if err := a.UpdateSignals(ctx, userID, guildID, m.Content); err != nil {
			return err
		}
	}
	return nil
}

// RebuildAll 对所有有消息的 (user, guild) 对做重建，带并发上限
func (a *Aggregator) RebuildAll(ctx context.Context) error {
	type pair struct {
		UserID  int64
		GuildID int64
	}
	var pairs []pair
	err := a.db.WithContext(ctx).Model(&models.Message{}).
		Distinct("user_id, guild_id").
		Scan(&pairs).Error
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildParallelism)
	for _, p := range pairs {
		p := p
		g.Go(func() error {
			if err := a.RebuildForUser(gctx, p.UserID, p.GuildID); err != nil {
				a.log.Warn("rebuild failed",
					"user_id", p.UserID, "guild_id", p.GuildID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}
