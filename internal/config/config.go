package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ==================== 配置定义 ====================

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// MeliConfig 上游客户端配置
type MeliConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MinIntervalMillis int    `mapstructure:"min_interval_millis"`
	RetryMax          int    `mapstructure:"retry_max"`
	BackoffBaseMillis int    `mapstructure:"backoff_base_millis"`
	BackoffCapSeconds int    `mapstructure:"backoff_cap_seconds"`
	RateRetrySeconds  int    `mapstructure:"rate_retry_seconds"`
}

// SyncConfig 同步引擎配置
type SyncConfig struct {
	PageLimit      int `mapstructure:"page_limit"`       // 搜索页大小
	BatchSize      int `mapstructure:"batch_size"`       // 单事务 upsert 上限
	InlinePages    int `mapstructure:"inline_pages"`     // 触发请求返回前同步处理的页数
	DupStreakLimit int `mapstructure:"dup_streak_limit"` // 连续零新增批次的判停阈值（经验值，需按数据量调）
	ScanThreshold  int `mapstructure:"scan_threshold"`   // 估算总量超过该值走 scan 模式
	MaxConsecFails int `mapstructure:"max_consec_fails"` // 连续页级失败的熔断阈值
	PageDelayMS    int `mapstructure:"page_delay_ms"`    // 页间固定延迟
	PausePollMS    int `mapstructure:"pause_poll_ms"`    // 暂停时的轮询间隔
	CursorTTLSec   int `mapstructure:"cursor_ttl_sec"`   // scan 游标名义有效期
}

// TaskConfig 后台任务配置
type TaskConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Concurrency     int    `mapstructure:"concurrency"`
	IncrementalSpec string `mapstructure:"incremental_spec"` // cron 表达式（带秒）
	FullSpec        string `mapstructure:"full_spec"`
}

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Meli     MeliConfig     `mapstructure:"meli"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Task     TaskConfig     `mapstructure:"task"`
}

// ==================== 加载 ====================

// Load 读取配置
// 优先级：环境变量 (MELI_ 前缀) > config.yaml > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("MELI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 配置文件可以不存在，全部走默认值 + 环境变量
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.dsn", "host=localhost user=meli_admin password=1234 dbname=meli_gs port=5432 sslmode=disable")

	v.SetDefault("meli.base_url", "https://api.mercadolibre.com")
	v.SetDefault("meli.timeout_seconds", 20)
	v.SetDefault("meli.min_interval_millis", 200)
	v.SetDefault("meli.retry_max", 3)
	v.SetDefault("meli.backoff_base_millis", 500)
	v.SetDefault("meli.backoff_cap_seconds", 10)
	v.SetDefault("meli.rate_retry_seconds", 60)

	v.SetDefault("sync.page_limit", 50)
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("sync.inline_pages", 5)
	v.SetDefault("sync.dup_streak_limit", 50)
	v.SetDefault("sync.scan_threshold", 1000)
	v.SetDefault("sync.max_consec_fails", 3)
	v.SetDefault("sync.page_delay_ms", 500)
	v.SetDefault("sync.pause_poll_ms", 1000)
	v.SetDefault("sync.cursor_ttl_sec", 300)

	v.SetDefault("task.enabled", true)
	v.SetDefault("task.concurrency", 3)
	v.SetDefault("task.incremental_spec", "0 */30 * * * *")
	v.SetDefault("task.full_spec", "0 0 3 * * *")
}

// ==================== 便捷换算 ====================

func (m MeliConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}
func (m MeliConfig) MinInterval() time.Duration {
	return time.Duration(m.MinIntervalMillis) * time.Millisecond
}
func (m MeliConfig) BackoffBase() time.Duration {
	return time.Duration(m.BackoffBaseMillis) * time.Millisecond
}
func (m MeliConfig) BackoffCap() time.Duration {
	return time.Duration(m.BackoffCapSeconds) * time.Second
}
func (m MeliConfig) RateRetry() time.Duration {
	return time.Duration(m.RateRetrySeconds) * time.Second
}

func (s SyncConfig) PageDelay() time.Duration { return time.Duration(s.PageDelayMS) * time.Millisecond }
func (s SyncConfig) PausePoll() time.Duration {
	return time.Duration(s.PausePollMS) * time.Millisecond
}
func (s SyncConfig) CursorTTL() time.Duration { return time.Duration(s.CursorTTLSec) * time.Second }
