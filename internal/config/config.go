package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 进程级配置，各服务只取自己需要的部分
type Config struct {
	Port     string
	GinMode  string
	Database DatabaseConfig
	Log      LogConfig
	LLM      LLMConfig
	Feed     FeedConfig
	Search   SearchConfig
	Metrics  MetricsConfig
	CacheTTL time.Duration
	Seed     bool
}

type DatabaseConfig struct {
	Driver string // postgres | sqlite
	URL    string
}

type LogConfig struct {
	Level string
	JSON  bool
}

// LLMConfig OpenAI 兼容的对话接口
type LLMConfig struct {
	BaseURL string
	Token   string
	Model   string
	Timeout time.Duration
}

type FeedConfig struct {
	NocoDBURL   string
	NocoDBToken string
	RSSURL      string
	Schedule    string // cron 表达式，为空则不定时同步
}

type SearchConfig struct {
	Limit int
}

// MetricsConfig OTLP gRPC 指标导出，Endpoint 为空时不导出
type MetricsConfig struct {
	Endpoint string
	Interval time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("database_url", "host=localhost user=postgres password=postgres dbname=inteligencia port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("llm_base_url", "")
	v.SetDefault("llm_token", "")
	v.SetDefault("llm_model", "gemini-2.5-flash")
	v.SetDefault("llm_timeout", "60s")
	v.SetDefault("nocodb_url", "")
	v.SetDefault("nocodb_token", "")
	v.SetDefault("feed_rss_url", "")
	v.SetDefault("feed_sync_schedule", "")
	v.SetDefault("search_limit", 200)
	v.SetDefault("otel_exporter_otlp_metrics_endpoint", "")
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("metrics_interval", "10s")
	v.SetDefault("cache_ttl", "30s")
	v.SetDefault("seed_mockup", false)
}

// Load 配置加载顺序：.env -> config.yaml -> 环境变量（环境变量优先）
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading config from environment")
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	endpoint := v.GetString("otel_exporter_otlp_metrics_endpoint")
	if endpoint == "" {
		endpoint = v.GetString("otel_exporter_otlp_endpoint")
	}
	limit := v.GetInt("search_limit")
	if limit <= 0 {
		limit = 200
	}
	return &Config{
		Port:    v.GetString("port"),
		GinMode: v.GetString("gin_mode"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("db_driver")),
			URL:    v.GetString("database_url"),
		},
		Log: LogConfig{
			Level: v.GetString("log_level"),
			JSON:  v.GetBool("log_json"),
		},
		LLM: LLMConfig{
			BaseURL: strings.TrimSuffix(v.GetString("llm_base_url"), "/"),
			Token:   v.GetString("llm_token"),
			Model:   v.GetString("llm_model"),
			Timeout: v.GetDuration("llm_timeout"),
		},
		Feed: FeedConfig{
			NocoDBURL:   v.GetString("nocodb_url"),
			NocoDBToken: v.GetString("nocodb_token"),
			RSSURL:      v.GetString("feed_rss_url"),
			Schedule:    v.GetString("feed_sync_schedule"),
		},
		Search: SearchConfig{Limit: limit},
		Metrics: MetricsConfig{
			Endpoint: endpoint,
			Interval: v.GetDuration("metrics_interval"),
		},
		CacheTTL: v.GetDuration("cache_ttl"),
		Seed:     v.GetBool("seed_mockup"),
	}
}
