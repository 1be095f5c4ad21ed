package configs

import (
	"fmt"

	"github.com/spf13/viper"
)

// Server HTTP服务配置
type Server struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug | release
}

// Database 数据库配置
type Database struct {
	Driver   string `mapstructure:"driver"` // postgres | mysql | sqlite
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Path     string `mapstructure:"path"` // sqlite文件路径
}

// Auth 管理端认证配置
type Auth struct {
	JWTSecret         string `mapstructure:"jwt_secret"`
	ExpiresIn         int    `mapstructure:"expires_in"` // 过期时间（小时）
	AdminUser         string `mapstructure:"admin_user"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"` // bcrypt哈希
}

// Classifier 文本分析后端配置
type Classifier struct {
	Backend    string `mapstructure:"backend"` // local | hosted | llm
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	Model      string `mapstructure:"model"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// Workers 工作池与节流配置
type Workers struct {
	AnalysisWorkers int `mapstructure:"analysis_workers"`
	AnalysisQueue   int `mapstructure:"analysis_queue"`
	ChartWorkers    int `mapstructure:"chart_workers"`
	ChartQueue      int `mapstructure:"chart_queue"`
	CooldownSec     int `mapstructure:"cooldown_sec"`    // 同一用户两次AI分析的最小间隔
	MinAnalyzeLen   int `mapstructure:"min_analyze_len"` // 低于该长度的消息不分析
}

// Alerts 毒性告警配置
type Alerts struct {
	DefaultThreshold float64 `mapstructure:"default_threshold"`
	CooldownHours    int     `mapstructure:"cooldown_hours"`
	WebhookURL       string  `mapstructure:"webhook_url"`
}

// Charts 图表生成配置
type Charts struct {
	OutputDir   string `mapstructure:"output_dir"`
	FontPath    string `mapstructure:"font_path"`
	CacheTTLSec int    `mapstructure:"cache_ttl_sec"`
}

type Config struct {
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Auth       Auth       `mapstructure:"auth"`
	Classifier Classifier `mapstructure:"classifier"`
	Workers    Workers    `mapstructure:"workers"`
	Alerts     Alerts     `mapstructure:"alerts"`
	Charts     Charts     `mapstructure:"charts"`
	LogMode    string     `mapstructure:"log_mode"` // dev | prod
}

// Load 加载配置
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("auth.expires_in", 24)
	viper.SetDefault("classifier.backend", "local")
	viper.SetDefault("classifier.timeout_sec", 8)
	viper.SetDefault("workers.analysis_workers", 4)
	viper.SetDefault("workers.analysis_queue", 64)
	viper.SetDefault("workers.chart_workers", 2)
	viper.SetDefault("workers.chart_queue", 16)
	viper.SetDefault("workers.cooldown_sec", 15)
	viper.SetDefault("workers.min_analyze_len", 6)
	viper.SetDefault("alerts.default_threshold", 0.8)
	viper.SetDefault("alerts.cooldown_hours", 2)
	viper.SetDefault("charts.output_dir", "charts")
	viper.SetDefault("charts.cache_ttl_sec", 60)
	viper.SetDefault("log_mode", "prod")
}

// validate 启动期校验：缺失的关键配置直接失败，而不是在处理事件时才暴露
func (c *Config) validate() error {
	if c.Database.Driver != "sqlite" && (c.Database.Host == "" || c.Database.DBName == "") {
		return fmt.Errorf("database host/dbname is required for driver %s", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		return fmt.Errorf("database path is required for sqlite")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required")
	}
	if c.Classifier.Backend != "local" && c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier api_key is required for backend %s", c.Classifier.Backend)
	}
	return nil
}
