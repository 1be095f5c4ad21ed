package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const defaultLLMEndpoint = "https://api.openai.com/v1/chat/completions"

// LLMClassifier LLM后端：用JSON模式让模型给出情感与毒性评分。
// 失败或超时回退本地启发式。
type LLMClassifier struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	fallback   *LocalClassifier
}

// NewLLMClassifier 创建LLM后端实例
func NewLLMClassifier(endpoint, apiKey, model string, timeout time.Duration) *LLMClassifier {
	if endpoint == "" {
		endpoint = defaultLLMEndpoint
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &LLMClassifier{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		fallback:   NewLocalClassifier(),
	}
}

func (c *LLMClassifier) Name() string { return string(BackendLLM) }

// 请求结构体
type llmRequest struct {
	Model          string       `json:"model"`
	Messages       []llmMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
}

type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// 响应结构体
type llmResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *LLMClassifier) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := llmRequest{
		Model:    c.model,
		Messages: []llmMessage{{Role: "user", Content: prompt}},
	}
	reqBody.ResponseFormat.Type = "json_object"

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var response llmResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", err
	}
	if response.Error.Message != "" {
		return "", errors.New(response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("empty llm response")
	}
	return response.Choices[0].Message.Content, nil
}

func (c *LLMClassifier) sentiment(ctx context.Context, text string) (float64, error) {
	prompt := "Classify sentiment as positive, neutral, or negative. " +
		"Return JSON with keys 'label' and 'score' in [-1,1].\nText:\n" + truncate(text, 2000)
	content, err := c.complete(ctx, prompt)
	if err != nil {
		return 0, err
	}
	var data struct {
		Label string      `json:"label"`
		Score json.Number `json:"score"`
	}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return 0, err
	}
	score, err := strconv.ParseFloat(data.Score.String(), 64)
	if err != nil {
		return 0, err
	}
	return score, nil
}

func (c *LLMClassifier) toxicity(ctx context.Context, text string) (float64, error) {
	prompt := "Rate toxicity from 0.0 to 1.0 (0=not toxic, 1=max toxic). " +
		"Return JSON {\"toxicity\": number}.\nText:\n" + truncate(text, 2000)
	content, err := c.complete(ctx, prompt)
	if err != nil {
		return 0, err
	}
	var data struct {
		Toxicity json.Number `json:"toxicity"`
	}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return 0, err
	}
	val, err := strconv.ParseFloat(data.Toxicity.String(), 64)
	if err != nil {
		return 0, err
	}
	return clamp01(val), nil
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (*Classification, error) {
	if c.apiKey == "" {
		return c.fallback.Classify(ctx, text)
	}
	score, err := c.sentiment(ctx, text)
	if err != nil {
		return c.fallback.Classify(ctx, text)
	}
	tox, err := c.toxicity(ctx, text)
	if err != nil {
		return c.fallback.Classify(ctx, text)
	}
	return &Classification{
		SentimentScore: score,
		SentimentLabel: LabelForScore(score),
		Toxicity:       tox,
		Topics:         TopicsFromText(text),
		Style:          StyleFromText(text),
	}, nil
}
