package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"earshot/session"
)

// Config is everything resolved from flags, the environment and an
// optional .env file before the pipeline starts.
type Config struct {
	APIKey       string
	Profile      string
	Language     string
	CustomPrompt string

	CaptureCmd      string // helper binary for system/speaker audio
	CaptureArgs     []string
	CaptureChannels int
	FakeWAV         string // replay a WAV file instead of live capture

	DeviceName string
	Setup      bool
	LogPath    string
}

// loadConfig merges the .env file (if present) into the environment and
// reads the settings flags do not cover. Flag values already in cfg win
// over the environment.
func loadConfig(cfg *Config) error {
	// Missing .env is fine; a malformed one is not.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY not set (flag, environment or .env)")
	}
	if cfg.Profile == "" {
		cfg.Profile = os.Getenv("EARSHOT_PROFILE")
	}
	if cfg.CustomPrompt == "" {
		cfg.CustomPrompt = os.Getenv("EARSHOT_PROMPT")
	}
	if cfg.CaptureCmd == "" {
		if raw := os.Getenv("EARSHOT_CAPTURE_CMD"); raw != "" {
			parts := strings.Fields(raw)
			cfg.CaptureCmd = parts[0]
			cfg.CaptureArgs = parts[1:]
		}
	}
	return nil
}

func (c *Config) sessionParams() session.Params {
	return session.Params{
		APIKey:       c.APIKey,
		CustomPrompt: c.CustomPrompt,
		Profile:      c.Profile,
		Language:     c.Language,
	}
}
