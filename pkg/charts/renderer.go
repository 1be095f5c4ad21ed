package charts

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/insightcord/insightcord/configs"
	"github.com/insightcord/insightcord/models"
	"github.com/insightcord/insightcord/pkg/analytics"
	"github.com/insightcord/insightcord/pkg/cache"
	"github.com/insightcord/insightcord/pkg/logger"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"golang.org/x/image/font"
	"gorm.io/gorm"
)

// 支持的数据集
const (
	DatasetMessages   = "messages"
	DatasetTopUsers   = "topusers"
	DatasetEngagement = "engagement"
	DatasetSentiment  = "sentiment"
)

const (
	chartWidth  = 900
	chartHeight = 500
	topUserRows = 10
)

// Request 一次图表渲染请求
type Request struct {
	Dataset string
	GuildID int64
	Viz     string
	Days    int
	Theme   string
}

func (r Request) cacheKey() string {
	return fmt.Sprintf("%d:%s:%s:%d:%s", r.GuildID, r.Dataset, r.Viz, r.Days, r.Theme)
}

// Renderer 把聚合数据渲染成 PNG 文件并缓存结果路径
type Renderer struct {
	db        *gorm.DB
	log       *logger.Logger
	daily     *analytics.DailyCounterStore
	results   *cache.TTLCache
	outputDir string
	fontFace  font.Face
	now       func() time.Time
}

// NewRenderer 创建渲染器。字体文件可选，缺省时用 gg 的内置字体。
func NewRenderer(db *gorm.DB, log *logger.Logger, daily *analytics.DailyCounterStore, cfg configs.Charts) (*Renderer, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建图表输出目录失败: %w", err)
	}

	var face font.Face
	if cfg.FontPath != "" {
		var err error
		face, err = loadFontFace(cfg.FontPath, 16)
		if err != nil {
			return nil, err
		}
	}

	ttl := time.Duration(cfg.CacheTTLSec) * time.Second
	if ttl <= 0 {
		ttl = 60 * time.Second
	}

	return &Renderer{
		db:        db,
		log:       log.With("component", "charts"),
		daily:     daily,
		results:   cache.New(256, ttl),
		outputDir: cfg.OutputDir,
		fontFace:  face,
		now:       time.Now,
	}, nil
}

// SetClock 注入时钟（测试用）
func (r *Renderer) SetClock(now func() time.Time) { r.now = now }

// Close 释放结果缓存
func (r *Renderer) Close() { r.results.Close() }

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("读取字体文件失败: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("解析TTF失败: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

// Render 渲染一个数据集。无数据返回空路径和 nil 错误。
func (r *Renderer) Render(ctx context.Context, req Request) (string, error) {
	if req.Days <= 0 {
		req.Days = 30
	}
	if cached, ok := r.results.Get(req.cacheKey()); ok {
		path := cached.(string)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	var (
		path string
		err  error
	)
	switch req.Dataset {
	case DatasetMessages:
		path, err = r.renderMessages(ctx, req)
	case DatasetTopUsers:
		path, err = r.renderTopUsers(ctx, req)
	case DatasetEngagement:
		path, err = r.renderEngagement(ctx, req)
	case DatasetSentiment:
		path, err = r.renderSentiment(ctx, req)
	default:
		return "", fmt.Errorf("未知数据集: %s", req.Dataset)
	}
	if err != nil || path == "" {
		return path, err
	}

	r.results.Set(req.cacheKey(), path)
	return path, nil
}

// renderMessages 公会每日消息量，折线或柱状
func (r *Renderer) renderMessages(ctx context.Context, req Request) (string, error) {
	today := r.now().UTC()
	since := models.DayOf(today.AddDate(0, 0, -(req.Days - 1)))

	totals, err := r.daily.GuildDailyTotals(ctx, req.GuildID, since)
	if err != nil {
		return "", err
	}
	if len(totals) == 0 {
		return "", nil
	}

	byDay := make(map[string]int, len(totals))
	for _, t := range totals {
		byDay[t.Day] = t.Total
	}

	// 补齐到连续日期区间
	labels := make([]string, 0, req.Days)
	values := make([]float64, 0, req.Days)
	for i := req.Days - 1; i >= 0; i-- {
		day := models.DayOf(today.AddDate(0, 0, -i))
		labels = append(labels, day[5:])
		values = append(values, float64(byDay[day]))
	}

	theme := ThemeByName(req.Theme)
	dc := r.newContext(theme)
	title := fmt.Sprintf("Messages per day (last %d days)", req.Days)
	if req.Viz == "bar" {
		r.drawVerticalBars(dc, theme, title, labels, values)
	} else {
		r.drawLine(dc, theme, title, labels, values)
	}
	return r.save(dc, req.Dataset)
}

type namedValue struct {
	Label string
	Value float64
}

// renderTopUsers 按消息总量取前十名，横向柱状
func (r *Renderer) renderTopUsers(ctx context.Context, req Request) (string, error) {
	var rows []struct {
		Username     string
		MessageCount int
	}
	err := r.db.WithContext(ctx).
		Table("user_activity").
		Select("COALESCE(NULLIF(users.username, ''), ?) AS username, user_activity.message_count",
			models.UnknownUsername).
		Joins("LEFT JOIN users ON users.user_id = user_activity.user_id AND users.guild_id = user_activity.guild_id").
		Where("user_activity.guild_id = ?", req.GuildID).
		Order("user_activity.message_count DESC").
		Limit(topUserRows).
		Scan(&rows).Error
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}

	items := make([]namedValue, 0, len(rows))
	for _, row := range rows {
		items = append(items, namedValue{Label: row.Username, Value: float64(row.MessageCount)})
	}

	theme := ThemeByName(req.Theme)
	dc := r.newContext(theme)
	r.drawHorizontalBars(dc, theme, "Top users by messages", items, theme.Accent)
	return r.save(dc, req.Dataset)
}

// renderEngagement 按参与度分数取前十名
func (r *Renderer) renderEngagement(ctx context.Context, req Request) (string, error) {
	var rows []struct {
		Username        string
		EngagementScore float64
	}
	err := r.db.WithContext(ctx).
		Table("user_engagement").
		Select("COALESCE(NULLIF(users.username, ''), ?) AS username, user_engagement.engagement_score",
			models.UnknownUsername).
		Joins("LEFT JOIN users ON users.user_id = user_engagement.user_id AND users.guild_id = user_engagement.guild_id").
		Where("user_engagement.guild_id = ?", req.GuildID).
		Order("user_engagement.engagement_score DESC").
		Limit(topUserRows).
		Scan(&rows).Error
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}

	items := make([]namedValue, 0, len(rows))
	for _, row := range rows {
		items = append(items, namedValue{Label: row.Username, Value: row.EngagementScore})
	}

	theme := ThemeByName(req.Theme)
	dc := r.newContext(theme)
	r.drawHorizontalBars(dc, theme, "Top users by engagement", items, theme.Secondary)
	return r.save(dc, req.Dataset)
}

// renderSentiment 公会情感分布，环形图或柱状
func (r *Renderer) renderSentiment(ctx context.Context, req Request) (string, error) {
	var rows []struct {
		DominantSentiment string
		Count             int
	}
	err := r.db.WithContext(ctx).
		Table("user_ai_analysis").
		Select("dominant_sentiment, COUNT(*) AS count").
		Where("guild_id = ?", req.GuildID).
		Group("dominant_sentiment").
		Scan(&rows).Error
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}

	theme := ThemeByName(req.Theme)
	counts := map[string]float64{}
	for _, row := range rows {
		counts[row.DominantSentiment] = float64(row.Count)
	}
	items := []namedValue{
		{Label: "positive", Value: counts[models.SentimentPositive]},
		{Label: "neutral", Value: counts[models.SentimentNeutral]},
		{Label: "negative", Value: counts[models.SentimentNegative]},
	}

	dc := r.newContext(theme)
	if req.Viz == "bars" {
		r.drawHorizontalBars(dc, theme, "Sentiment distribution", items, theme.Accent)
	} else {
		r.drawDonut(dc, theme, "Sentiment distribution", items)
	}
	return r.save(dc, req.Dataset)
}

func (r *Renderer) newContext(theme Theme) *gg.Context {
	dc := gg.NewContext(chartWidth, chartHeight)
	if r.fontFace != nil {
		dc.SetFontFace(r.fontFace)
	}
	dc.SetColor(theme.Background)
	dc.Clear()
	return dc
}

func (r *Renderer) save(dc *gg.Context, dataset string) (string, error) {
	path := filepath.Join(r.outputDir, fmt.Sprintf("%s_%s.png", dataset, uuid.NewString()))
	if err := dc.SavePNG(path); err != nil {
		return "", fmt.Errorf("写PNG失败: %w", err)
	}
	return path, nil
}

func (r *Renderer) drawTitle(dc *gg.Context, theme Theme, title string) {
	dc.SetColor(theme.Foreground)
	dc.DrawStringAnchored(title, chartWidth/2, 24, 0.5, 0.5)
}

// drawLine 折线加浅色填充
func (r *Renderer) drawLine(dc *gg.Context, theme Theme, title string, labels []string, values []float64) {
	r.drawTitle(dc, theme, title)

	const (
		left   = 60.0
		right  = chartWidth - 30.0
		top    = 50.0
		bottom = chartHeight - 50.0
	)
	peak := maxValue(values)
	if peak <= 0 {
		peak = 1
	}

	dc.SetColor(theme.Grid)
	dc.SetLineWidth(1)
	for i := 0; i <= 4; i++ {
		y := top + (bottom-top)*float64(i)/4
		dc.DrawLine(left, y, right, y)
		dc.Stroke()
		dc.SetColor(theme.Foreground)
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", peak*(1-float64(i)/4)), left-8, y, 1, 0.5)
		dc.SetColor(theme.Grid)
	}

	step := (right - left) / float64(maxInt(len(values)-1, 1))
	dc.SetColor(theme.Accent)
	dc.SetLineWidth(2)
	for i, v := range values {
		x := left + float64(i)*step
		y := bottom - (bottom-top)*v/peak
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()

	for i, v := range values {
		x := left + float64(i)*step
		y := bottom - (bottom-top)*v/peak
		dc.DrawCircle(x, y, 2.5)
		dc.Fill()
	}

	// 横轴最多放十个刻度
	labelEvery := maxInt(len(labels)/10, 1)
	dc.SetColor(theme.Foreground)
	for i, label := range labels {
		if i%labelEvery != 0 {
			continue
		}
		x := left + float64(i)*step
		dc.DrawStringAnchored(label, x, bottom+16, 0.5, 0.5)
	}
}

func (r *Renderer) drawVerticalBars(dc *gg.Context, theme Theme, title string, labels []string, values []float64) {
	r.drawTitle(dc, theme, title)

	const (
		left   = 60.0
		right  = chartWidth - 30.0
		top    = 50.0
		bottom = chartHeight - 50.0
	)
	peak := maxValue(values)
	if peak <= 0 {
		peak = 1
	}

	slot := (right - left) / float64(len(values))
	barW := slot * 0.7
	for i, v := range values {
		h := (bottom - top) * v / peak
		x := left + float64(i)*slot + (slot-barW)/2
		dc.SetColor(theme.Accent)
		dc.DrawRectangle(x, bottom-h, barW, h)
		dc.Fill()
	}

	labelEvery := maxInt(len(labels)/10, 1)
	dc.SetColor(theme.Foreground)
	for i, label := range labels {
		if i%labelEvery != 0 {
			continue
		}
		x := left + float64(i)*slot + slot/2
		dc.DrawStringAnchored(label, x, bottom+16, 0.5, 0.5)
	}
}

func (r *Renderer) drawHorizontalBars(dc *gg.Context, theme Theme, title string, items []namedValue, barColor color.NRGBA) {
	r.drawTitle(dc, theme, title)

	const (
		left   = 200.0
		right  = chartWidth - 80.0
		top    = 50.0
		bottom = chartHeight - 30.0
	)
	peak := 0.0
	for _, it := range items {
		peak = math.Max(peak, it.Value)
	}
	if peak <= 0 {
		peak = 1
	}

	slot := (bottom - top) / float64(len(items))
	barH := math.Min(slot*0.6, 28)
	for i, it := range items {
		y := top + float64(i)*slot + (slot-barH)/2
		w := (right - left) * it.Value / peak

		dc.SetColor(barColor)
		dc.DrawRectangle(left, y, w, barH)
		dc.Fill()

		dc.SetColor(theme.Foreground)
		dc.DrawStringAnchored(truncateLabel(it.Label, 20), left-10, y+barH/2, 1, 0.5)
		dc.DrawStringAnchored(formatValue(it.Value), left+w+8, y+barH/2, 0, 0.5)
	}
}

// drawDonut 环形占比图加图例
func (r *Renderer) drawDonut(dc *gg.Context, theme Theme, title string, items []namedValue) {
	r.drawTitle(dc, theme, title)

	total := 0.0
	for _, it := range items {
		total += it.Value
	}
	if total <= 0 {
		total = 1
	}

	sliceColors := []color.NRGBA{theme.Secondary, theme.Grid, theme.Danger}

	const (
		cx    = chartWidth * 0.38
		cy    = (chartHeight + 30) / 2.0
		outer = 150.0
		inner = 80.0
	)
	angle := -math.Pi / 2
	for i, it := range items {
		span := 2 * math.Pi * it.Value / total
		if span <= 0 {
			continue
		}
		dc.SetColor(sliceColors[i%len(sliceColors)])
		dc.MoveTo(cx+outer*math.Cos(angle), cy+outer*math.Sin(angle))
		dc.DrawArc(cx, cy, outer, angle, angle+span)
		dc.LineTo(cx+inner*math.Cos(angle+span), cy+inner*math.Sin(angle+span))
		dc.DrawArc(cx, cy, inner, angle+span, angle)
		dc.ClosePath()
		dc.Fill()
		angle += span
	}

	legendX := chartWidth * 0.68
	legendY := cy - float64(len(items))*14
	for i, it := range items {
		y := legendY + float64(i)*28
		dc.SetColor(sliceColors[i%len(sliceColors)])
		dc.DrawRectangle(legendX, y-6, 12, 12)
		dc.Fill()
		dc.SetColor(theme.Foreground)
		pct := 100 * it.Value / total
		dc.DrawStringAnchored(fmt.Sprintf("%s: %.0f (%.0f%%)", it.Label, it.Value, pct), legendX+20, y, 0, 0.5)
	}
}

func maxValue(values []float64) float64 {
	peak := 0.0
	for _, v := range values {
		peak = math.Max(peak, v)
	}
	return peak
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func truncateLabel(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
