package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"neviweb-go-home/internal/notify"
)

type Config struct {
	Neviweb struct {
		Username       string   `yaml:"username" envconfig:"NEVIWEB_USERNAME"`
		Password       string   `yaml:"password" envconfig:"NEVIWEB_PASSWORD"`
		Networks       []string `yaml:"networks" envconfig:"NEVIWEB_NETWORKS"`
		BaseURL        string   `yaml:"base_url" envconfig:"NEVIWEB_BASE_URL"`
		ScanInterval   int      `yaml:"scan_interval" envconfig:"NEVIWEB_SCAN_INTERVAL"`     // seconds
		StatInterval   int      `yaml:"stat_interval" envconfig:"NEVIWEB_STAT_INTERVAL"`     // seconds
		RequestTimeout int      `yaml:"request_timeout" envconfig:"NEVIWEB_REQUEST_TIMEOUT"` // seconds
		HomekitMode    bool     `yaml:"homekit_mode" envconfig:"NEVIWEB_HOMEKIT_MODE"`
	} `yaml:"neviweb"`
	Web struct {
		Listen         string   `yaml:"listen" envconfig:"WEB_LISTEN"`
		APIKey         string   `yaml:"api_key" envconfig:"WEB_API_KEY"`
		AllowedOrigins []string `yaml:"allowed_origins" envconfig:"WEB_ALLOWED_ORIGINS"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path" envconfig:"STORE_PATH"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled" envconfig:"MQTT_ENABLED"`
		Broker      string `yaml:"broker" envconfig:"MQTT_BROKER"`
		Username    string `yaml:"username" envconfig:"MQTT_USERNAME"`
		Password    string `yaml:"password" envconfig:"MQTT_PASSWORD"`
		ClientID    string `yaml:"client_id" envconfig:"MQTT_CLIENT_ID"`
		TopicPrefix string `yaml:"topic_prefix" envconfig:"MQTT_TOPIC_PREFIX"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
		Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	} `yaml:"log"`
	Ntfy struct {
		Server      string `yaml:"server" envconfig:"NTFY_SERVER"`
		Topic       string `yaml:"topic" envconfig:"NTFY_TOPIC"`
		Priority    string `yaml:"priority" envconfig:"NTFY_PRIORITY"`
		DedupWindow string `yaml:"dedup_window" envconfig:"NTFY_DEDUP_WINDOW"`
	} `yaml:"ntfy"`
	ScriptsDir string `yaml:"scripts_dir" envconfig:"SCRIPTS_DIR"`
}

func (c *Config) validate() error {
	if c.Neviweb.Username == "" || c.Neviweb.Password == "" {
		return fmt.Errorf("neviweb.username and neviweb.password are required")
	}
	if c.Neviweb.ScanInterval < 300 || c.Neviweb.ScanInterval > 600 {
		return fmt.Errorf("neviweb.scan_interval must be 300-600 seconds, got %d", c.Neviweb.ScanInterval)
	}
	if c.Neviweb.StatInterval < 300 || c.Neviweb.StatInterval > 1800 {
		return fmt.Errorf("neviweb.stat_interval must be 300-1800 seconds, got %d", c.Neviweb.StatInterval)
	}
	if c.Neviweb.RequestTimeout <= 0 {
		return fmt.Errorf("neviweb.request_timeout must be positive")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if _, err := c.dedupWindow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) dedupWindow() (time.Duration, error) {
	if c.Ntfy.DedupWindow == "" {
		return notify.DefaultWindow, nil
	}
	d, err := time.ParseDuration(c.Ntfy.DedupWindow)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("ntfy.dedup_window: invalid duration %q", c.Ntfy.DedupWindow)
	}
	return d, nil
}

// loadConfig reads the YAML file, applies environment overrides and fills
// defaults. A missing file is fine when everything comes from the
// environment.
func loadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if cfg.Neviweb.ScanInterval == 0 {
		cfg.Neviweb.ScanInterval = 540
	}
	if cfg.Neviweb.StatInterval == 0 {
		cfg.Neviweb.StatInterval = 1800
	}
	if cfg.Neviweb.RequestTimeout == 0 {
		cfg.Neviweb.RequestTimeout = 30
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "neviweb-home.db"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "neviweb"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}
