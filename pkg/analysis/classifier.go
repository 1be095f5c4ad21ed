package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/insightcord/insightcord/configs"
	"github.com/insightcord/insightcord/models"
)

// Classification 一次文本分析的结果
type Classification struct {
	SentimentScore float64        `json:"sentimentScore"` // [-1, 1]
	SentimentLabel string         `json:"sentimentLabel"`
	Toxicity       float64        `json:"toxicity"` // [0, 1]
	Topics         map[string]int `json:"topics"`
	Style          string         `json:"style"`
}

// Classifier 文本分析后端接口。
// 实现：本地启发式、托管推理服务、LLM。启动时按配置选定一个，之后不再切换。
type Classifier interface {
	// Classify 分析一段文本
	Classify(ctx context.Context, text string) (*Classification, error)
	// Name 获取后端名称
	Name() string
}

// 后端类型
type BackendType string

const (
	BackendLocal  BackendType = "local"
	BackendHosted BackendType = "hosted"
	BackendLLM    BackendType = "llm"
)

// NewClassifier 按配置创建分析后端实例
func NewClassifier(cfg configs.Classifier) (Classifier, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	switch BackendType(cfg.Backend) {
	case BackendLocal, "":
		return NewLocalClassifier(), nil
	case BackendHosted:
		return NewHostedClassifier(cfg.Endpoint, cfg.APIKey, timeout), nil
	case BackendLLM:
		return NewLLMClassifier(cfg.Endpoint, cfg.APIKey, cfg.Model, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported classifier backend: %s", cfg.Backend)
	}
}

// LabelForScore 情感分数到标签的阈值映射：>0.25为positive，<-0.25为negative
func LabelForScore(score float64) string {
	switch {
	case score > 0.25:
		return models.SentimentPositive
	case score < -0.25:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// clamp01 裁剪到 [0, 1]
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
