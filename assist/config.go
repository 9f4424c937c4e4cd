package assist

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/webguide/channels"
	"github.com/hazyhaar/webguide/llm"
)

// Config is the top-level webguide configuration.
type Config struct {
	Browser  BrowserConfig   `yaml:"browser"`
	LLM      llm.Config      `yaml:"llm"`
	Caption  CaptionConfig   `yaml:"caption"`
	Channels []ChannelConfig `yaml:"channels"`
	Audit    AuditConfig     `yaml:"audit"`
	Ops      OpsConfig       `yaml:"ops"`
	Match    MatchConfig     `yaml:"match"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	// Remote connects to an already-running Chrome instead of launching one.
	Remote           string        `yaml:"remote"`
	Stealth          bool          `yaml:"stealth"`
	NavTimeout       time.Duration `yaml:"nav_timeout"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// CaptionConfig points at the image captioning service.
type CaptionConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ChannelConfig declares one chat connector. Settings holds the
// platform-specific options passed to the channel factory.
type ChannelConfig struct {
	Name     string         `yaml:"name"`
	Platform string         `yaml:"platform"`
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings"`
}

// AuditConfig controls the SQLite navigation event log.
type AuditConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// OpsConfig controls the operational HTTP endpoint.
type OpsConfig struct {
	Listen string `yaml:"listen"`
}

// MatchConfig tunes the fuzzy section matcher.
type MatchConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("assist: parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Caption.Timeout <= 0 {
		c.Caption.Timeout = 15 * time.Second
	}
	if c.Audit.Path == "" {
		c.Audit.Path = "webguide.db"
	}
	if c.Audit.RetentionDays <= 0 {
		c.Audit.RetentionDays = 30
	}
	if c.Ops.Listen == "" {
		c.Ops.Listen = ":8090"
	}
	if c.Match.Threshold <= 0 {
		c.Match.Threshold = 0.5
	}
}

// ChannelSpecs converts the YAML channel declarations into dispatcher
// specs, with each channel's settings re-encoded as JSON for its factory.
func (c *Config) ChannelSpecs() ([]channels.Spec, error) {
	specs := make([]channels.Spec, 0, len(c.Channels))
	for _, cc := range c.Channels {
		settings := cc.Settings
		if settings == nil {
			settings = map[string]any{}
		}
		raw, err := json.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("assist: channel %q settings: %w", cc.Name, err)
		}
		specs = append(specs, channels.Spec{
			Name:     cc.Name,
			Platform: cc.Platform,
			Enabled:  cc.Enabled,
			Config:   raw,
		})
	}
	return specs, nil
}
