package config

import (
	"path/filepath"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	dbFileName     = "sitepulse.db"
)

type Config struct {
	Env         string `mapstructure:"env" validate:"required,oneof=development production"`
	ServiceName string `mapstructure:"service_name" validate:"required"`
	ListenAddr  string `mapstructure:"listen_addr" validate:"required"`
	DataDir     string `mapstructure:"data_dir" validate:"required"`
	// TargetURL is the initial target; a value saved through the API wins.
	TargetURL string `mapstructure:"target_url" validate:"omitempty,url"`

	Probe    ProbeConfig    `mapstructure:"probe"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Store    StoreConfig    `mapstructure:"store"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Log      LogConfig      `mapstructure:"log"`
}

type ProbeConfig struct {
	Timeout            time.Duration `mapstructure:"timeout" validate:"gt=0"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	UserAgent          string        `mapstructure:"user_agent"`
}

type PolicyConfig struct {
	BlockedCodes []int  `mapstructure:"blocked_codes" validate:"dive,min=100,max=599"`
	BlockedLabel string `mapstructure:"blocked_label"`
}

type StoreConfig struct {
	Retention time.Duration `mapstructure:"retention" validate:"gte=1h"`
	// Location is an IANA zone name; calendar days are cut in it.
	Location string `mapstructure:"location"`
}

type MonitorConfig struct {
	// Schedule is a cron spec; empty leaves triggering to GET /monitor.
	Schedule string `mapstructure:"schedule"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=1"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, dbFileName)
}

// Location resolves Store.Location, falling back to the process zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Store.Location == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Store.Location)
}
