package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"jazz/internal/agent"
)

type AgentConfig struct {
	ID      string   `yaml:"id"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

type Config struct {
	LogLevel     string        `yaml:"log_level"`
	DefaultAgent string        `yaml:"default_agent"`
	Agents       []AgentConfig `yaml:"agents"`
}

func DefaultConfig() Config {
	return Config{LogLevel: "info"}
}

func (c Config) WithDefaults() Config {
	out := c
	if strings.TrimSpace(out.LogLevel) == "" {
		out.LogLevel = "info"
	}
	if strings.TrimSpace(out.DefaultAgent) == "" && len(out.Agents) == 1 {
		out.DefaultAgent = out.Agents[0].ID
	}
	return out
}

// Load reads the config file; a missing file means defaults.
func Load(path string) (Config, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return Config{}, errors.New("config path is empty")
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig().WithDefaults(), nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", p, err)
	}
	return cfg.WithDefaults(), nil
}

// Resolver builds the agent resolver declared by this config.
func (c Config) Resolver() *agent.StaticResolver {
	agents := make([]agent.Info, 0, len(c.Agents))
	for _, a := range c.Agents {
		agents = append(agents, agent.Info{ID: a.ID, Command: a.Command, Args: a.Args})
	}
	return &agent.StaticResolver{Default: c.DefaultAgent, Agents: agents}
}
