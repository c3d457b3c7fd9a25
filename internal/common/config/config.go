package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Consul   ConsulConfig   `json:"consul"`
	Jaeger   JaegerConfig   `json:"jaeger"`
	Log      LogConfig      `json:"log"`
	Jobs     JobsConfig     `json:"jobs"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name     string `json:"name"`      // 服务名称
	Host     string `json:"host"`      // 服务地址
	GRPCPort int    `json:"grpc_port"` // gRPC 端口（health check 用）
	HTTPPort int    `json:"http_port"` // HTTP 端口（ops-gateway 用）
}

// DatabaseConfig 数据库配置（共享关系库，本系统唯一的外部边界）
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	MaxIdle  int    `json:"max_idle"` // 最大空闲连接
	MaxOpen  int    `json:"max_open"` // 最大打开连接
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger配置
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// LogConfig 日志配置
type LogConfig struct {
	Driver string `json:"driver"` // logrus, zap
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
}

// JobsConfig 批处理任务配置
type JobsConfig struct {
	// ReconcileIntervalMinutes 周期对账间隔（分钟）。0 表示只接受手动触发。
	ReconcileIntervalMinutes int `json:"reconcile_interval_minutes"`

	// ReceptionBackdateDays 完成拍照时向前回推的接收天数。
	// 车辆实际到店与拍照完成之间运营上通常相差约 2 天。
	ReceptionBackdateDays int `json:"reception_backdate_days"`

	// RowRetry 单行写失败后的重试次数（批次内，不中断其他行）。
	RowRetry int `json:"row_retry"`

	// BreakerMaxFailures / BreakerResetSeconds 周期任务外层熔断参数。
	BreakerMaxFailures  int `json:"breaker_max_failures"`
	BreakerResetSeconds int `json:"breaker_reset_seconds"`

	// OpsRateCapacity / OpsRatePerSecond ops-gateway 的令牌桶参数。
	OpsRateCapacity  int64 `json:"ops_rate_capacity"`
	OpsRatePerSecond int64 `json:"ops_rate_per_second"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置；文件不存在时退回默认配置（开发环境）。
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		if _, err = os.Stat(configPath); os.IsNotExist(err) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			err = nil
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}
		applyJobsDefaults(&globalConfig.Jobs)
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// applyJobsDefaults 给配置文件缺省的任务参数补默认值，避免 0 值导致任务空转。
func applyJobsDefaults(j *JobsConfig) {
	if j.ReceptionBackdateDays <= 0 {
		j.ReceptionBackdateDays = 2
	}
	if j.RowRetry <= 0 {
		j.RowRetry = 1
	}
	if j.BreakerMaxFailures <= 0 {
		j.BreakerMaxFailures = 3
	}
	if j.BreakerResetSeconds <= 0 {
		j.BreakerResetSeconds = 60
	}
	if j.OpsRateCapacity <= 0 {
		j.OpsRateCapacity = 10
	}
	if j.OpsRatePerSecond <= 0 {
		j.OpsRatePerSecond = 5
	}
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Name:     "reconciler-service",
			Host:     "0.0.0.0",
			GRPCPort: 50051,
			HTTPPort: 8080,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "cvo",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "localhost:6831",
			Sampler:  1.0,
		},
		Log: LogConfig{
			Driver: "logrus",
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
		Jobs: JobsConfig{
			ReconcileIntervalMinutes: 10,
		},
	}
	applyJobsDefaults(&cfg.Jobs)
	return cfg
}
