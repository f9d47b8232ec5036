package app

import (
	"errors"
	"strings"
	"time"
)

// Config holds runtime configuration for one exporter instance.
type Config struct {
	// ThreadURL is the thread to export. Post-anchor parameters are
	// stripped before fetching.
	ThreadURL string
	// Pages forces the page count; 0 discovers it from the pagination
	// control on the first page.
	Pages int

	// OutputPath writes the PDF to an explicit file. When empty the PDF is
	// handed to the directory sink under OutputDir.
	OutputPath string
	OutputDir  string

	// ProfilePath overlays the built-in CSS selector profile.
	ProfilePath string
	// EmojiPath overrides the embedded emoji description table.
	EmojiPath string

	// Fetch behavior
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	// RateLimit paces page requests, in requests per second. 0 disables.
	RateLimit float64
	CacheDir  string

	Verbose bool
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.ThreadURL) == "" {
		return errors.New("config: thread URL is required")
	}
	if cfg.Pages < 0 {
		return errors.New("config: negative page count is not allowed")
	}
	if cfg.MaxAttempts < 0 || cfg.RateLimit < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
