package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/insightcord/insightcord/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelForScore(t *testing.T) {
	assert.Equal(t, models.SentimentPositive, LabelForScore(0.26))
	assert.Equal(t, models.SentimentNegative, LabelForScore(-0.26))
	// 阈值本身还是中性
	assert.Equal(t, models.SentimentNeutral, LabelForScore(0.25))
	assert.Equal(t, models.SentimentNeutral, LabelForScore(-0.25))
	assert.Equal(t, models.SentimentNeutral, LabelForScore(0))
}

func TestLocalSentiment(t *testing.T) {
	assert.Equal(t, 1.0, LocalSentiment("merci bravo super"))
	assert.Equal(t, -1.0, LocalSentiment("nul horrible"))
	assert.Equal(t, 0.0, LocalSentiment("bonjour tout le monde"))
	// 混合消息取占比
	assert.InDelta(t, 1.0/3.0, LocalSentiment("super cool mais nul"), 1e-9)
}

func TestLocalToxicity(t *testing.T) {
	assert.Equal(t, 0.0, LocalToxicity("bonjour tout le monde"))

	// 短消息单命中
	one := LocalToxicity("ferme ta gueule")
	assert.Greater(t, one, 0.5)

	// 命中越多分越高
	many := LocalToxicity("connard débile crétin")
	assert.GreaterOrEqual(t, many, one)
	assert.LessOrEqual(t, many, 1.0)

	// 长文本稀释单命中
	long := LocalToxicity("idiot " + strings.Repeat("word ", 60))
	assert.Less(t, long, one)
}

func TestTopicsFromText(t *testing.T) {
	topics := TopicsFromText("on joue à minecraft et valorant ce soir, gg")
	assert.Equal(t, 3, topics["gaming"])

	// 多词关键词
	topics = TopicsFromText("tu regardes one piece ?")
	assert.Equal(t, 1, topics["anime"])

	assert.Empty(t, TopicsFromText("rien de spécial"))
}

func TestStyleFromText(t *testing.T) {
	assert.Equal(t, "concise", StyleFromText("ok"))
	assert.Equal(t, "verbose", StyleFromText(strings.Repeat("beaucoup de mots ", 12)))
	assert.Equal(t, "balanced", StyleFromText("une phrase de longueur moyenne ici"))
	assert.Equal(t, "balanced, inquisitive", StyleFromText("tu en penses quoi exactement ?"))
	assert.Equal(t, "balanced, enthusiastic", StyleFromText("c'est vraiment incroyable!! bravo!!"))
	assert.Equal(t, "concise, expressive", StyleFromText("gg 🎉🎉"))
}

func TestLocalClassifier(t *testing.T) {
	c := NewLocalClassifier()

	_, err := c.Classify(context.Background(), "   ")
	assert.Error(t, err)

	res, err := c.Classify(context.Background(), "merci pour l'aide avec le bug python!")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentPositive, res.SentimentLabel)
	assert.Equal(t, 0.0, res.Toxicity)
	assert.Equal(t, 1, res.Topics["dev"])
	assert.GreaterOrEqual(t, res.Topics["entraide"], 1)
}
