package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// 词典：快速启发式（也是远程后端失败时的兜底）
var (
	positiveWords = map[string]struct{}{
		"merci": {}, "bravo": {}, "génial": {}, "super": {}, "cool": {},
		"parfait": {}, "bien": {}, "top": {}, "excellent": {},
		"thanks": {}, "great": {}, "awesome": {}, "nice": {}, "love": {},
	}
	negativeWords = map[string]struct{}{
		"nul": {}, "mauvais": {}, "chiant": {}, "horrible": {}, "dégoûtant": {},
		"pire": {}, "triste": {}, "énervé": {},
		"bad": {}, "awful": {}, "terrible": {}, "hate": {}, "worst": {},
	}
	toxicLexicon = []string{
		"con", "connard", "fdp", "merde", "ta gueule",
		"nique", "enculé", "putain", "salope", "batard",
		"abruti", "débile", "crétin", "bouffon", "gros con",
		"ferme ta gueule", "tg", "encule", "enculer",
		"idiot", "stupid", "moron", "shut up",
	}
)

// topicMap 话题关键词表
var topicMap = map[string][]string{
	"gaming":   {"game", "gaming", "lol", "valorant", "minecraft", "fortnite", "rank", "gg"},
	"anime":    {"anime", "manga", "one piece", "naruto", "bleach", "waifu"},
	"entraide": {"help", "aide", "entraide", "bug", "problème", "issue", "fix"},
	"musique":  {"music", "musique", "song", "track", "spotify", "album"},
	"études":   {"cours", "examen", "tp", "td", "contrôle", "devoir"},
	"dev":      {"python", "js", "java", "go", "react", "sql", "api", "bot", "linux", "postgres"},
}

var (
	tokenRe = regexp.MustCompile(`[a-zA-ZÀ-ÖØ-öø-ÿ0-9]+`)
	emojiRe = regexp.MustCompile(`[\x{10000}-\x{10FFFF}]`)
	excRe   = regexp.MustCompile(`!+`)
	quesRe  = regexp.MustCompile(`\?+`)
)

func tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// LocalSentiment 基于词典的情感分数 [-1, 1]
func LocalSentiment(text string) float64 {
	toks := tokenize(text)
	pos, neg := 0, 0
	for _, t := range toks {
		if _, ok := positiveWords[t]; ok {
			pos++
		}
		if _, ok := negativeWords[t]; ok {
			neg++
		}
	}
	if pos == 0 && neg == 0 {
		return 0.0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// LocalToxicity 基于词典+频率的毒性分数 [0, 1]。
// 消息越短、命中越多，分数越高；命中数达到2和3时额外抬升。
func LocalToxicity(text string) float64 {
	low := strings.ToLower(text)
	hits := 0
	for _, w := range toxicLexicon {
		if strings.Contains(low, w) {
			hits++
		}
	}
	wordCount := len(strings.Fields(low))
	if wordCount < 1 {
		wordCount = 1
	}

	base := float64(hits) / (float64(wordCount) / 3.0)
	if base > 1.0 {
		base = 1.0
	}
	switch {
	case hits >= 3:
		base += 0.4
	case hits == 2:
		base += 0.25
	case hits == 1:
		base += 0.1
	}
	return clamp01(base)
}

// TopicsFromText 用关键词表提取话题计数
func TopicsFromText(text string) map[string]int {
	toks := tokenize(text)
	tokSet := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		tokSet[t] = struct{}{}
	}
	joined := strings.Join(toks, " ")

	counts := make(map[string]int)
	for topic, keys := range topicMap {
		for _, k := range keys {
			if strings.Contains(k, " ") {
				if strings.Contains(joined, k) {
					counts[topic]++
				}
			} else if _, ok := tokSet[k]; ok {
				counts[topic]++
			}
		}
	}
	return counts
}

// StyleFromText 表达风格分类：长度定基调，表情/标点加修饰
func StyleFromText(text string) string {
	length := len(text)
	exc := len(excRe.FindAllString(text, -1))
	ques := len(quesRe.FindAllString(text, -1))
	emojis := len(emojiRe.FindAllString(text, -1))

	var base string
	switch {
	case length < 25 && ques == 0:
		base = "concise"
	case length > 160:
		base = "verbose"
	default:
		base = "balanced"
	}
	var parts []string
	parts = append(parts, base)
	if emojis >= 2 {
		parts = append(parts, "expressive")
	}
	if exc >= 2 {
		parts = append(parts, "enthusiastic")
	}
	if ques >= 1 {
		parts = append(parts, "inquisitive")
	}
	return strings.Join(parts, ", ")
}

// LocalClassifier 本地启发式后端：词典情感+词典毒性+关键词话题+风格规则
type LocalClassifier struct{}

// NewLocalClassifier 创建本地后端
func NewLocalClassifier() *LocalClassifier {
	return &LocalClassifier{}
}

func (c *LocalClassifier) Name() string { return string(BackendLocal) }

func (c *LocalClassifier) Classify(_ context.Context, text string) (*Classification, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text")
	}
	score := LocalSentiment(text)
	return &Classification{
		SentimentScore: score,
		SentimentLabel: LabelForScore(score),
		Toxicity:       LocalToxicity(text),
		Topics:         TopicsFromText(text),
		Style:          StyleFromText(text),
	}, nil
}
