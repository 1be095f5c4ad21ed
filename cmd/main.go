package main

import (
	"log"

	"github.com/insightcord/insightcord/api"
	"github.com/insightcord/insightcord/api/handlers"
	"github.com/insightcord/insightcord/configs"
	"github.com/insightcord/insightcord/database"
	"github.com/insightcord/insightcord/pkg/alerts"
	"github.com/insightcord/insightcord/pkg/analysis"
	"github.com/insightcord/insightcord/pkg/analytics"
	"github.com/insightcord/insightcord/pkg/charts"
	"github.com/insightcord/insightcord/pkg/ingest"
	"github.com/insightcord/insightcord/pkg/logger"
	"github.com/insightcord/insightcord/pkg/utils"
	"github.com/insightcord/insightcord/pkg/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := configs.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer lg.Sync()

	// 初始化JWT
	utils.InitJWT(cfg.Auth)

	// 初始化数据库连接
	db, err := database.Open(cfg.Database)
	if err != nil {
		lg.Fatal("Failed to open database", "error", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		lg.Fatal("Failed to migrate database", "error", err)
	}

	// 聚合层
	daily := analytics.NewDailyCounterStore(db)
	activity := analytics.NewActivityAggregator(db, daily)
	engagement := analytics.NewEngagementAggregator(db, daily, activity)
	voice := analytics.NewVoiceTracker(db)
	snapshots := analytics.NewSnapshotComposer(db, daily)
	ranks := analytics.NewRankEngine(db)

	// 内容分析与告警
	classifier, err := analysis.NewClassifier(cfg.Classifier)
	if err != nil {
		lg.Fatal("Failed to init classifier", "error", err)
	}
	signals := analysis.NewAggregator(db, lg, classifier)
	alertEngine := alerts.NewEngine(db, lg, cfg.Alerts)

	// 图表渲染
	renderer, err := charts.NewRenderer(db, lg, daily, cfg.Charts)
	if err != nil {
		lg.Fatal("Failed to init chart renderer", "error", err)
	}
	defer renderer.Close()
	chartPool := worker.New("charts", cfg.Workers.ChartWorkers, cfg.Workers.ChartQueue, lg)
	defer chartPool.Stop()

	// 事件入口
	svc := ingest.NewService(db, lg, activity, engagement, voice, signals, alertEngine, cfg.Workers)
	defer svc.Close()

	// 创建Gin实例
	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()

	// 设置路由
	api.SetupRouter(router, api.Handlers{
		Auth:    handlers.NewAuthHandler(cfg.Auth),
		Events:  handlers.NewEventHandler(svc, lg),
		Reports: handlers.NewReportHandler(snapshots, ranks, renderer, chartPool, lg),
		Admin:   handlers.NewAdminHandler(db, alertEngine, signals, cfg.Alerts.DefaultThreshold, lg),
	})

	// 启动服务器
	lg.Info("Server starting", "port", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		lg.Fatal("Failed to start server", "error", err)
	}
}
