package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"site-pulse/internal/monitor"
)

// Load reads path (yaml) when it exists, then applies env overrides.
// TELEGRAM_TOKEN, TELEGRAM_CHAT_ID and TARGET_URL map onto their keys.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("service_name", "site-pulse")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("data_dir", "data")
	v.SetDefault("target_url", "")

	v.SetDefault("probe.timeout", "10s")
	v.SetDefault("probe.insecure_skip_verify", false)
	v.SetDefault("probe.user_agent", "")

	v.SetDefault("policy.blocked_codes", []int{403, 429})
	v.SetDefault("policy.blocked_label", "Online (WAF)")

	v.SetDefault("store.retention", "168h")
	v.SetDefault("store.location", "")

	v.SetDefault("monitor.schedule", "")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}

func validateConfig(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return formatValidationErrors(ve)
		}
		return err
	}

	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("config validation failed: store.location: %w", err)
	}
	if cfg.Monitor.Schedule != "" {
		if err := monitor.ValidateSchedule(cfg.Monitor.Schedule); err != nil {
			return fmt.Errorf("config validation failed: monitor.schedule: %w", err)
		}
	}
	return nil
}

func formatValidationErrors(ve validator.ValidationErrors) error {
	var sb strings.Builder
	sb.WriteString("config validation failed:\n")

	for _, fe := range ve {
		fmt.Fprintf(&sb, "- field '%s' failed on '%s'\n", fe.Namespace(), fe.Tag())
	}
	return errors.New(sb.String())
}

