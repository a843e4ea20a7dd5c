package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/eddyhq/eddy/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Worker    WorkerConfig    `yaml:"worker"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	Platforms PlatformsConfig `yaml:"platforms"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type WorkerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	WorkerID       string `yaml:"worker_id"`
	BatchSize      int    `yaml:"batch_size"`
	PollInterval   string `yaml:"poll_interval"`
	PacingDelay    string `yaml:"pacing_delay"`
	PublishTimeout string `yaml:"publish_timeout"`
}

type SweeperConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Schedule  string `yaml:"schedule"`
	BatchSize int    `yaml:"batch_size"`
}

type PlatformConfig struct {
	Enabled     bool   `yaml:"enabled"`
	APIBase     string `yaml:"api_base"`
	AccessToken string `yaml:"access_token"`
}

type PlatformsConfig struct {
	Instagram PlatformConfig `yaml:"instagram"`
	TikTok    PlatformConfig `yaml:"tiktok"`
	Twitter   PlatformConfig `yaml:"twitter"`
	LinkedIn  PlatformConfig `yaml:"linkedin"`
	Facebook  PlatformConfig `yaml:"facebook"`
	YouTube   PlatformConfig `yaml:"youtube"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with the defaults the server
// runs with when the config file leaves them out.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5560
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 10
	}
	if cfg.Worker.PollInterval == "" {
		cfg.Worker.PollInterval = "5s"
	}
	if cfg.Worker.PacingDelay == "" {
		cfg.Worker.PacingDelay = "500ms"
	}
	if cfg.Worker.PublishTimeout == "" {
		cfg.Worker.PublishTimeout = "60s"
	}
	if cfg.Sweeper.Schedule == "" {
		cfg.Sweeper.Schedule = "@every 1m"
	}
	if cfg.Sweeper.BatchSize == 0 {
		cfg.Sweeper.BatchSize = 50
	}
}
