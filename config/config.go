package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr string `yaml:"addr"`
}

type Inference struct {
	URL string `yaml:"url"`
}

// Bot selects and tunes the automation variant. The browser client reacts
// within seconds, the desktop client needs minutes between captures.
type Bot struct {
	Variant            string `yaml:"variant"` // "browser" or "desktop"
	BrowserBin         string `yaml:"browser_bin"`
	Headless           bool   `yaml:"headless"`
	ClientPath         string `yaml:"client_path"` // desktop meeting client binary
	AgentURL           string `yaml:"agent_url"`   // UI-automation agent (desktop variant)
	CaptureIntervalSec int    `yaml:"capture_interval_sec"`
	DefaultBotName     string `yaml:"default_bot_name"`
	DataDir            string `yaml:"data_dir"`
}

type Artifacts struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type Root struct {
	Server    Server    `yaml:"server"`
	Inference Inference `yaml:"inference"`
	Bot       Bot       `yaml:"bot"`
	Artifacts Artifacts `yaml:"artifacts"`
	LogLevel  string    `yaml:"log_level"`
	LogJSON   bool      `yaml:"log_json"`
}

// Load reads the first config file it finds and applies environment
// overrides on top.
func Load() (*Root, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	guess := []string{
		filepath.Join("config", env, "config.yaml"),
		"config.yaml",
	}

	root := defaults()
	for _, p := range guess {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(root); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		break
	}

	applyEnv(root)
	return root, nil
}

func defaults() *Root {
	return &Root{
		Server:    Server{Addr: ":8081"},
		Inference: Inference{URL: "http://localhost:8090"},
		Bot: Bot{
			Variant:        "browser",
			BrowserBin:     "/usr/bin/google-chrome",
			Headless:       true,
			AgentURL:       "http://localhost:8091",
			DefaultBotName: "Emotion Bot",
			DataDir:        "./bot_data",
		},
		Artifacts: Artifacts{Enabled: true, Dir: "./debug_frames"},
		LogLevel:  "info",
	}
}

func applyEnv(r *Root) {
	if v := os.Getenv("BOT_LISTEN_ADDR"); v != "" {
		r.Server.Addr = v
	}
	if v := os.Getenv("INFERENCE_URL"); v != "" {
		r.Inference.URL = v
	}
	if v := os.Getenv("BOT_VARIANT"); v != "" {
		r.Bot.Variant = v
	}
	if v := os.Getenv("BROWSER_BIN"); v != "" {
		r.Bot.BrowserBin = v
	}
	if v := os.Getenv("CLIENT_PATH"); v != "" {
		r.Bot.ClientPath = v
	}
	if v := os.Getenv("UIA_AGENT_URL"); v != "" {
		r.Bot.AgentURL = v
	}
	if v := os.Getenv("CAPTURE_INTERVAL"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			r.Bot.CaptureIntervalSec = sec
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		r.LogLevel = v
	}
}

// CaptureInterval returns the configured capture interval. The default is
// resolved per variant, 4s for the browser client and 240s for the desktop
// client, so the field stays unset in defaults() and the variant decides.
func (r *Root) CaptureInterval() time.Duration {
	if r.Bot.CaptureIntervalSec > 0 {
		return time.Duration(r.Bot.CaptureIntervalSec) * time.Second
	}
	if r.Bot.Variant == "desktop" {
		return 240 * time.Second
	}
	return 4 * time.Second
}
