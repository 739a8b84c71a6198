package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Chat     ChatConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// EventChannel 通知事件发布的频道
	EventChannel string
}

// AIConfig AI配置
type AIConfig struct {
	Provider string
	OpenAI   OpenAIConfig
	DeepSeek DeepSeekConfig
}

// OpenAIConfig OpenAI配置
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// DeepSeekConfig DeepSeek配置
type DeepSeekConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// ChatConfig 客服会话配置
// 核心逻辑的可调参数统一集中在这里，带文档化的默认值。
type ChatConfig struct {
	// AutoAwayMinutes 心跳超时后自动置为离开的全局默认阈值（分钟）
	AutoAwayMinutes int
	// InactivityDays 最后一条消息超过该天数未更新则进入退休候选
	InactivityDays int
	// AbandonedDays 创建超过该天数且零消息则进入退休候选
	AbandonedDays int
	// HardDeleteEnabled 是否允许物理删除（仅针对已匿名化记录）
	HardDeleteEnabled bool
	// HardDeleteAfterDays 匿名化后再经过该天数才允许物理删除
	HardDeleteAfterDays int
	// SummaryMinMessages 关闭时触发 AI 摘要生成的最小消息数
	SummaryMinMessages int
	// MaxMessageLength 消息体最大长度
	MaxMessageLength int
	// PresenceSweepSeconds 在线状态过期清理的运行间隔（秒）
	PresenceSweepSeconds int
	// RetirementSweepHours 退休清理的运行间隔（小时）
	RetirementSweepHours int
}

var globalConfig *Config

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("LIVECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ProbeTimeout AI 探测调用的超时时间
func (c *AIConfig) ProbeTimeout() time.Duration {
	timeout := c.OpenAI.Timeout
	if c.Provider == "deepseek" {
		timeout = c.DeepSeek.Timeout
	}
	if timeout <= 0 {
		timeout = 5
	}
	return time.Duration(timeout) * time.Second
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "livechat")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "livechat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.eventChannel", "livechat:events")

	// AI
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.timeout", 5)
	v.SetDefault("ai.deepseek.baseUrl", "https://api.deepseek.com/v1")
	v.SetDefault("ai.deepseek.model", "deepseek-chat")
	v.SetDefault("ai.deepseek.timeout", 5)

	// Chat
	v.SetDefault("chat.autoAwayMinutes", 15)
	v.SetDefault("chat.inactivityDays", 30)
	v.SetDefault("chat.abandonedDays", 90)
	v.SetDefault("chat.hardDeleteEnabled", false)
	v.SetDefault("chat.hardDeleteAfterDays", 180)
	v.SetDefault("chat.summaryMinMessages", 5)
	v.SetDefault("chat.maxMessageLength", 4000)
	v.SetDefault("chat.presenceSweepSeconds", 60)
	v.SetDefault("chat.retirementSweepHours", 24)
}
