package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Collector struct {
		URL      string `yaml:"url"`
		PageSize int    `yaml:"page_size"`
	} `yaml:"collector"`
	Markov struct {
		URL       string `yaml:"url"`
		StateSize int    `yaml:"state_size"`
		MinScore  int    `yaml:"min_score"`
		MaxTries  int    `yaml:"max_tries"`
	} `yaml:"markov"`
	Bot struct {
		Token         string  `yaml:"token"`
		CommandPrefix string  `yaml:"command_prefix"`
		OwnerIDs      []int64 `yaml:"owner_ids"`
	} `yaml:"bot"`
	Training struct {
		UpdateRate    int  `yaml:"update_rate"`
		DefaultListen bool `yaml:"default_listen"`
	} `yaml:"training"`
	Server struct {
		Port      string `yaml:"port"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Collector.PageSize <= 0 {
		c.Collector.PageSize = 100
	}
	if c.Markov.StateSize <= 0 {
		c.Markov.StateSize = 2
	}
	if c.Markov.MinScore <= 0 {
		c.Markov.MinScore = 10
	}
	if c.Markov.MaxTries <= 0 {
		c.Markov.MaxTries = 1000
	}
	if c.Bot.CommandPrefix == "" {
		c.Bot.CommandPrefix = "!mimic"
	}
	if c.Training.UpdateRate <= 0 {
		c.Training.UpdateRate = 1000
	}
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
}
