package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema. Nested
// sections map naturally to the flag namespace.
type FileConfig struct {
	URL   string `yaml:"url" json:"url"`
	Pages int    `yaml:"pages" json:"pages"`

	Output string `yaml:"output" json:"output"`
	OutDir string `yaml:"outDir" json:"outDir"`

	Profile string `yaml:"profile" json:"profile"`
	Emoji   string `yaml:"emoji" json:"emoji"`

	Fetch struct {
		UA        string        `yaml:"ua" json:"ua"`
		Timeout   time.Duration `yaml:"timeout" json:"timeout"`
		Attempts  int           `yaml:"attempts" json:"attempts"`
		RateLimit float64       `yaml:"rateLimit" json:"rateLimit"`
	} `yaml:"fetch" json:"fetch"`

	Cache struct {
		Dir string `yaml:"dir" json:"dir"`
	} `yaml:"cache" json:"cache"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if yerr := yaml.Unmarshal(b, &fc); yerr != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", yerr, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields
// that are currently unset in cfg. Flags should already have been parsed;
// this lets file config supply defaults while preserving explicit flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.ThreadURL == "" && fc.URL != "" {
		cfg.ThreadURL = fc.URL
	}
	if cfg.Pages == 0 && fc.Pages > 0 {
		cfg.Pages = fc.Pages
	}
	if cfg.OutputPath == "" && fc.Output != "" {
		cfg.OutputPath = fc.Output
	}
	if cfg.OutputDir == "" && fc.OutDir != "" {
		cfg.OutputDir = fc.OutDir
	}
	if cfg.ProfilePath == "" && fc.Profile != "" {
		cfg.ProfilePath = fc.Profile
	}
	if cfg.EmojiPath == "" && fc.Emoji != "" {
		cfg.EmojiPath = fc.Emoji
	}
	if cfg.UserAgent == "" && fc.Fetch.UA != "" {
		cfg.UserAgent = fc.Fetch.UA
	}
	if cfg.Timeout == 0 && fc.Fetch.Timeout > 0 {
		cfg.Timeout = fc.Fetch.Timeout
	}
	if cfg.MaxAttempts == 0 && fc.Fetch.Attempts > 0 {
		cfg.MaxAttempts = fc.Fetch.Attempts
	}
	if cfg.RateLimit == 0 && fc.Fetch.RateLimit > 0 {
		cfg.RateLimit = fc.Fetch.RateLimit
	}
	if cfg.CacheDir == "" && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}
