// Package config loads, validates and persists the engine configuration from
// a YAML file, with environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envPrefix guards the override namespace, e.g. ZAPFINDER_SHOPEE_SECRET.
const envPrefix = "ZAPFINDER_"

// Config is the root of the YAML file.
type Config struct {
	Shopee       ShopeeConfig       `yaml:"shopee"`
	MercadoLivre MercadoLivreConfig `yaml:"mercadolivre"`
	WhatsApp     WhatsAppConfig     `yaml:"whatsapp"`
	Campaign     CampaignConfig     `yaml:"campaign"`
	Schedule     ScheduleConfig     `yaml:"schedule"`
	History      HistoryConfig      `yaml:"history"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type ShopeeConfig struct {
	Enabled bool   `yaml:"enabled"`
	AppID   string `yaml:"app_id"`
	Secret  string `yaml:"secret"`
}

type MercadoLivreConfig struct {
	Enabled bool     `yaml:"enabled"`
	Links   []string `yaml:"links"`
}

type WhatsAppConfig struct {
	Group        string `yaml:"group"`
	SessionDir   string `yaml:"session_dir"`
	Headless     bool   `yaml:"headless"`
	ReadyTimeout string `yaml:"ready_timeout"`
	SendDelay    string `yaml:"send_delay"`
}

type CampaignConfig struct {
	OfferLimit int `yaml:"offer_limit"`
}

type ScheduleConfig struct {
	Times []string `yaml:"times"`
	Tick  string   `yaml:"tick"`
}

type HistoryConfig struct {
	DBPath string `yaml:"db_path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() *Config {
	return &Config{
		Shopee: ShopeeConfig{Enabled: true},
		MercadoLivre: MercadoLivreConfig{
			Enabled: false,
		},
		WhatsApp: WhatsAppConfig{
			Group:        "",
			SessionDir:   defaultSessionDir(),
			Headless:     false,
			ReadyTimeout: "60s",
			SendDelay:    "2s",
		},
		Campaign: CampaignConfig{OfferLimit: 5},
		Schedule: ScheduleConfig{Tick: "5s"},
		History:  HistoryConfig{DBPath: defaultDBPath()},
		Logging:  LoggingConfig{Level: "info"},
	}
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zapfinder/session"
	}
	return filepath.Join(home, ".zapfinder", "session")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zapfinder/history.db"
	}
	return filepath.Join(home, ".zapfinder", "history.db")
}

// Load reads the config file, falling back to defaults when it does not
// exist. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// First run, defaults apply.
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// applyEnv layers environment overrides on top of the file values. Secrets
// belong in the environment, not on disk.
func (c *Config) applyEnv() {
	set := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	set("SHOPEE_APP_ID", &c.Shopee.AppID)
	set("SHOPEE_SECRET", &c.Shopee.Secret)
	set("WHATSAPP_GROUP", &c.WhatsApp.Group)
	set("HISTORY_DB", &c.History.DBPath)
	set("LOG_LEVEL", &c.Logging.Level)

	if v, ok := os.LookupEnv(envPrefix + "HEADLESS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.WhatsApp.Headless = b
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "ML_LINKS"); ok {
		var links []string
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				links = append(links, l)
			}
		}
		c.MercadoLivre.Links = links
	}
}

// Validate checks the cross-field constraints that YAML parsing cannot.
func (c *Config) Validate() error {
	if c.Campaign.OfferLimit <= 0 {
		return fmt.Errorf("campaign.offer_limit must be positive, got %d", c.Campaign.OfferLimit)
	}
	if c.MercadoLivre.Enabled {
		has := false
		for _, l := range c.MercadoLivre.Links {
			if strings.TrimSpace(l) != "" {
				has = true
				break
			}
		}
		if !has {
			return fmt.Errorf("mercadolivre enabled but no links configured")
		}
	}
	if _, err := c.ReadyTimeout(); err != nil {
		return err
	}
	if _, err := c.SendDelay(); err != nil {
		return err
	}
	if _, err := c.Tick(); err != nil {
		return err
	}
	return nil
}

// ReadyTimeout parses whatsapp.ready_timeout.
func (c *Config) ReadyTimeout() (time.Duration, error) {
	return parseDuration("whatsapp.ready_timeout", c.WhatsApp.ReadyTimeout, 60*time.Second)
}

// SendDelay parses whatsapp.send_delay.
func (c *Config) SendDelay() (time.Duration, error) {
	return parseDuration("whatsapp.send_delay", c.WhatsApp.SendDelay, 2*time.Second)
}

// Tick parses schedule.tick.
func (c *Config) Tick() (time.Duration, error) {
	return parseDuration("schedule.tick", c.Schedule.Tick, 5*time.Second)
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, d)
	}
	return d, nil
}
