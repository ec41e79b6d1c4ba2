package pagecycle

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration read from a YAML file.
type Config struct {
	Port                     int          `yaml:"port"`
	Strategy                 string       `yaml:"strategy"`
	RedirectForStatelessPage bool         `yaml:"redirectForStatelessPage"`
	BufferTTLSeconds         int          `yaml:"bufferTTLSeconds"`
	Pages                    []ConfigPage `yaml:"pages"`
}

// ConfigPage declares one page handler served by the demo server.
type ConfigPage struct {
	Path      string `yaml:"path"`
	Body      string `yaml:"body"`
	Stateless bool   `yaml:"stateless"`
	Policy    string `yaml:"policy"`
}

// GetConfig reads and parses the configuration file.
func GetConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

// Settings converts the file-level knobs into engine settings.
func (c Config) Settings() (Settings, error) {
	strategy, err := ParseStrategy(c.Strategy)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Strategy:                 strategy,
		RedirectForStatelessPage: c.RedirectForStatelessPage,
		BufferTTL:                time.Duration(c.BufferTTLSeconds) * time.Second,
	}, nil
}

// ParseStrategy converts a configuration string to a RenderStrategy.
// The empty string means the default, redirect-to-buffer.
func ParseStrategy(s string) (RenderStrategy, error) {
	switch s {
	case "", "redirect-to-buffer":
		return RedirectToBuffer, nil
	case "one-pass-render":
		return OnePassRender, nil
	case "redirect-to-render":
		return RedirectToRender, nil
	}
	return RedirectToBuffer, fmt.Errorf("unknown render strategy %q", s)
}

// ParsePolicy converts a configuration string to a RedirectPolicy.
// The empty string means the default, auto-redirect.
func ParsePolicy(s string) (RedirectPolicy, error) {
	switch s {
	case "", "auto-redirect":
		return AutoRedirect, nil
	case "never-redirect":
		return NeverRedirect, nil
	case "always-redirect":
		return AlwaysRedirect, nil
	}
	return AutoRedirect, fmt.Errorf("unknown redirect policy %q", s)
}
