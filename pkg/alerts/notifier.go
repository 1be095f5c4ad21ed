package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/insightcord/insightcord/pkg/logger"
)

// Alert 一次毒性越限告警
type Alert struct {
	UserID    int64     `json:"user_id"`
	GuildID   int64     `json:"guild_id"`
	Username  string    `json:"username,omitempty"`
	Toxicity  float64   `json:"toxicity"`
	Threshold float64   `json:"threshold"`
	FiredAt   time.Time `json:"fired_at"`
}

// Notifier 告警投递接口
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier 只写日志的投递实现
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "alerts")}
}

func (n *LogNotifier) Notify(_ context.Context, alert Alert) error {
	n.log.Warn("toxicity alert",
		"user_id", alert.UserID,
		"guild_id", alert.GuildID,
		"toxicity", alert.Toxicity,
		"threshold", alert.Threshold)
	return nil
}

// WebhookNotifier 按 JSON POST 推送到外部 webhook
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook返回状态码: %d", resp.StatusCode)
	}
	return nil
}
