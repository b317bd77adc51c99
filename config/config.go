// Package config loads the process configuration from a YAML file. Secrets
// may be left blank in the file and supplied through the environment.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

type Server struct {
	Addr       string `yaml:"addr"`
	PublicHost string `yaml:"public_host"`
}

type Model struct {
	APIKey  string `yaml:"api_key"`
	BaseUrl string `yaml:"base_url"`
	Name    string `yaml:"name"`
}

type Supabase struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type Redis struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type Qdrant struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

type Twilio struct {
	AccountSid string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
}

type Bridge struct {
	DrainMarginMs int `yaml:"drain_margin_ms"`
	GracePeriodMs int `yaml:"grace_period_ms"`
}

type Log struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type Config struct {
	Server   Server   `yaml:"server"`
	Model    Model    `yaml:"model"`
	Supabase Supabase `yaml:"supabase"`
	Redis    Redis    `yaml:"redis"`
	Qdrant   Qdrant   `yaml:"qdrant"`
	Twilio   Twilio   `yaml:"twilio"`
	Bridge   Bridge   `yaml:"bridge"`
	Log      Log      `yaml:"log"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	return cfg, nil
}
