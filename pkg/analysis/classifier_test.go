package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/insightcord/insightcord/configs"
	"github.com/insightcord/insightcord/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClassifierBackends(t *testing.T) {
	c, err := NewClassifier(configs.Classifier{Backend: "local"})
	require.NoError(t, err)
	assert.Equal(t, "local", c.Name())

	// 空backend默认本地
	c, err = NewClassifier(configs.Classifier{})
	require.NoError(t, err)
	assert.Equal(t, "local", c.Name())

	c, err = NewClassifier(configs.Classifier{Backend: "hosted"})
	require.NoError(t, err)
	assert.Equal(t, "hosted", c.Name())

	c, err = NewClassifier(configs.Classifier{Backend: "llm", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "llm", c.Name())

	_, err = NewClassifier(configs.Classifier{Backend: "quantum"})
	assert.Error(t, err)
}

// 两次补全调用：先情感后毒性，响应体都是JSON模式的choices结构
func newLLMServer(t *testing.T, contents ...string) *httptest.Server {
	t.Helper()
	calls := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Less(t, calls, len(contents))
		body := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": contents[calls]}},
			},
		}
		calls++
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
}

func TestLLMClassify(t *testing.T) {
	srv := newLLMServer(t,
		`{"label":"positive","score":0.8}`,
		`{"toxicity":0.1}`,
	)
	defer srv.Close()

	c := NewLLMClassifier(srv.URL, "test-key", "", 0)
	res, err := c.Classify(context.Background(), "merci beaucoup pour le gaming")
	require.NoError(t, err)

	assert.InDelta(t, 0.8, res.SentimentScore, 1e-9)
	assert.Equal(t, models.SentimentPositive, res.SentimentLabel)
	assert.InDelta(t, 0.1, res.Toxicity, 1e-9)
	// 话题与风格始终本地计算
	assert.Contains(t, res.Topics, "gaming")
}

func TestLLMClassifyFallsBackToLocal(t *testing.T) {
	// 无API key：根本不发请求
	c := NewLLMClassifier("", "", "", 0)
	res, err := c.Classify(context.Background(), "merci c'est super")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentPositive, res.SentimentLabel)

	// 上游报错：回退本地结果而不是失败
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	}))
	defer srv.Close()

	c = NewLLMClassifier(srv.URL, "test-key", "", 0)
	res, err = c.Classify(context.Background(), "merci c'est super")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentPositive, res.SentimentLabel)
}
