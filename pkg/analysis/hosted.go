package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HostedClassifier 托管推理服务后端。
// 约定两个子路径：POST {endpoint}/sentiment 与 POST {endpoint}/toxicity，
// 请求体 {"text": "..."}，响应 {"label": "...", "score": n}。
// 任一调用失败或超时都回退到本地启发式，事件不因此失败。
type HostedClassifier struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	fallback   *LocalClassifier
}

// NewHostedClassifier 创建托管后端实例
func NewHostedClassifier(endpoint, apiKey string, timeout time.Duration) *HostedClassifier {
	return &HostedClassifier{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		fallback:   NewLocalClassifier(),
	}
}

func (c *HostedClassifier) Name() string { return string(BackendHosted) }

type hostedRequest struct {
	Text string `json:"text"`
}

type hostedResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (c *HostedClassifier) call(ctx context.Context, path, text string) (*hostedResponse, error) {
	body, err := json.Marshal(hostedRequest{Text: truncate(text, 512)})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hosted classifier returned status %d", resp.StatusCode)
	}
	var out hostedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HostedClassifier) Classify(ctx context.Context, text string) (*Classification, error) {
	sent, err := c.call(ctx, "/sentiment", text)
	if err != nil {
		return c.fallback.Classify(ctx, text)
	}
	tox, err := c.call(ctx, "/toxicity", text)
	if err != nil {
		return c.fallback.Classify(ctx, text)
	}

	// 负面标签取负分
	score := sent.Score
	if !isPositiveLabel(sent.Label) {
		score = -score
	}

	// 话题与风格始终在本地计算
	return &Classification{
		SentimentScore: score,
		SentimentLabel: LabelForScore(score),
		Toxicity:       clamp01(tox.Score),
		Topics:         TopicsFromText(text),
		Style:          StyleFromText(text),
	}, nil
}

func isPositiveLabel(label string) bool {
	switch label {
	case "positive", "POSITIVE", "pos", "POS":
		return true
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
