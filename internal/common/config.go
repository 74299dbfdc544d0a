package common

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	ResourceManager ResourceManagerConfig `yaml:"resourcemanager"`
	Poller          PollerConfig          `yaml:"poller"`
	Store           StoreConfig           `yaml:"store"`
	Kafka           KafkaConfig           `yaml:"kafka"`
	Server          ServerConfig          `yaml:"server"`
	Log             LogConfig             `yaml:"log"`
}

// ResourceManagerConfig ResourceManager 客户端配置
type ResourceManagerConfig struct {
	Hosts      []string      `yaml:"hosts"` // 按故障转移优先级排序
	APIVersion string        `yaml:"api_version"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxHops    int           `yaml:"max_hops"`
}

// PollerConfig 轮询配置
type PollerConfig struct {
	Interval             time.Duration `yaml:"interval"`
	Workers              int           `yaml:"workers"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout"`
	TrackingTimeout      time.Duration `yaml:"tracking_timeout"`
	MassFailureDowngrade bool          `yaml:"mass_failure_downgrade"`
}

// StoreConfig 快照存储配置
type StoreConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// KafkaConfig 快照通知配置，brokers 为空时不启用
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// ServerConfig 状态服务配置，address 为空时不启用
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		ResourceManager: ResourceManagerConfig{
			Hosts:      []string{"http://localhost:8088"},
			APIVersion: "v1",
			Timeout:    30 * time.Second,
			MaxHops:    5,
		},
		Poller: PollerConfig{
			Interval:             10 * time.Second,
			Workers:              16,
			FetchTimeout:         120 * time.Second,
			TrackingTimeout:      10 * time.Second,
			MassFailureDowngrade: true,
		},
		Store: StoreConfig{
			Address: "localhost:6379",
			Key:     "yarnitor:status",
		},
		Kafka: KafkaConfig{
			Topic: "yarnitor-snapshots",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 7,
		},
	}
}

// LoadConfig 加载配置文件，path 为空时只使用默认值和环境变量
func LoadConfig(path string) (*Config, error) {
	config := GetDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	applyEnvOverrides(config)
	config.ResourceManager.Hosts = CleanupHostList(config.ResourceManager.Hosts)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides 兼容原有部署方式的环境变量
func applyEnvOverrides(config *Config) {
	if hosts := os.Getenv("YARN_ENDPOINT"); hosts != "" {
		config.ResourceManager.Hosts = strings.Split(hosts, ",")
	}
	if seconds := getEnvIntOrDefault("YARN_POLL_SLEEP", 0); seconds > 0 {
		config.Poller.Interval = time.Duration(seconds) * time.Second
	}
	config.Store.Address = getEnvOrDefault("REDIS_ENDPOINT", config.Store.Address)
	config.Log.Level = getEnvOrDefault("LOG_LEVEL", config.Log.Level)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if len(c.ResourceManager.Hosts) == 0 {
		return NewValidationError("resourcemanager.hosts", "at least one host is required", c.ResourceManager.Hosts)
	}
	if c.ResourceManager.MaxHops <= 0 {
		return NewValidationError("resourcemanager.max_hops", "must be greater than 0", c.ResourceManager.MaxHops)
	}
	if c.Poller.Interval <= 0 {
		return NewValidationError("poller.interval", "must be greater than 0", c.Poller.Interval)
	}
	if c.Poller.Workers <= 0 {
		return NewValidationError("poller.workers", "must be greater than 0", c.Poller.Workers)
	}
	if c.Poller.FetchTimeout <= 0 {
		return NewValidationError("poller.fetch_timeout", "must be greater than 0", c.Poller.FetchTimeout)
	}
	if c.Store.Key == "" {
		return NewValidationError("store.key", "cannot be empty", c.Store.Key)
	}
	return nil
}

// CleanupHostList 清理 ResourceManager 地址列表：
// 去掉空白和空项，缺少协议时补 http://，去掉末尾的 /
func CleanupHostList(hosts []string) []string {
	var clean []string
	for _, host := range hosts {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		u, err := url.Parse(host)
		if err != nil || u.Host == "" {
			continue
		}
		clean = append(clean, strings.TrimSuffix(u.String(), "/"))
	}
	return clean
}

// getEnvOrDefault 获取环境变量或使用默认值
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault 获取环境变量整数值或使用默认值
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
