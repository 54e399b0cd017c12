package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pagewatchhq/pagewatch/internal/logging"
	"github.com/pagewatchhq/pagewatch/internal/monitor"
	"github.com/pagewatchhq/pagewatch/pkg/types"
)

const (
	envConfigPath     = "PAGEWATCH_CONFIG"
	DefaultConfigPath = "/etc/pagewatch/config.yaml"

	// Webhook URLs are secrets; the environment wins over the file so the
	// file can be committed without them.
	envWebhookURL = "PAGEWATCH_WEBHOOK_URL"
)

const (
	defaultPollInterval     = 60 * time.Second
	defaultFetchTimeout     = 45 * time.Second
	defaultStatusInterval   = 12 * time.Hour
	defaultFailureThreshold = 3
	defaultDataDir          = "./data"
)

// Config is the resolved, immutable configuration for one run. It is
// constructed once at startup and handed into the runtime by value.
type Config struct {
	PollInterval     time.Duration
	FetchTimeout     time.Duration
	StatusInterval   time.Duration
	DataDir          string
	WebhookURL       string
	MonitorAddr      string
	Workers          int
	FailureThreshold int
	Log              logging.Config
	Targets          []monitor.Target
}

type rawConfig struct {
	PollInterval     string         `yaml:"poll_interval"`
	FetchTimeout     string         `yaml:"fetch_timeout"`
	StatusInterval   string         `yaml:"status_interval"`
	DataDir          string         `yaml:"data_dir"`
	WebhookURL       string         `yaml:"webhook_url"`
	MonitorAddr      string         `yaml:"monitor_addr"`
	Workers          int            `yaml:"workers"`
	FailureThreshold *int           `yaml:"failure_threshold"`
	Log              logging.Config `yaml:"log"`
	Targets          []rawTarget    `yaml:"targets"`
}

type rawTarget struct {
	Key        string     `yaml:"key"`
	URL        string     `yaml:"url"`
	SearchText stringList `yaml:"search_text"`
	Mode       string     `yaml:"mode"`
	Note       string     `yaml:"note"`
}

// stringList accepts either a scalar or a sequence of strings.
type stringList []string

func (s *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var v string
		if err := value.Decode(&v); err != nil {
			return err
		}
		*s = stringList{v}
		return nil
	case yaml.SequenceNode:
		var v []string
		if err := value.Decode(&v); err != nil {
			return err
		}
		*s = stringList(v)
		return nil
	default:
		return fmt.Errorf("expected string or list of strings")
	}
}

// Load reads and validates the configuration file. Every malformed target
// entry is rejected with an error naming its index; bad targets are never
// silently skipped.
func Load(ctx context.Context, path string) (Config, error) {
	var cfg Config

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	return resolve(raw)
}

// LoadFromEnv loads the config from $PAGEWATCH_CONFIG, falling back to the
// default path.
func LoadFromEnv(ctx context.Context) (Config, error) {
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}
	return Load(ctx, path)
}

func resolve(raw rawConfig) (Config, error) {
	var cfg Config
	var err error

	if cfg.PollInterval, err = parseDurationOrDefault("poll_interval", raw.PollInterval, defaultPollInterval); err != nil {
		return cfg, err
	}
	if cfg.FetchTimeout, err = parseDurationOrDefault("fetch_timeout", raw.FetchTimeout, defaultFetchTimeout); err != nil {
		return cfg, err
	}
	if cfg.StatusInterval, err = parseDurationOrDefault("status_interval", raw.StatusInterval, defaultStatusInterval); err != nil {
		return cfg, err
	}

	cfg.DataDir = raw.DataDir
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}

	cfg.WebhookURL = raw.WebhookURL
	if env := os.Getenv(envWebhookURL); env != "" {
		cfg.WebhookURL = env
	}

	cfg.MonitorAddr = raw.MonitorAddr
	cfg.Log = raw.Log

	cfg.Workers = raw.Workers
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	cfg.FailureThreshold = defaultFailureThreshold
	if raw.FailureThreshold != nil {
		if *raw.FailureThreshold < 0 {
			return cfg, fmt.Errorf("failure_threshold must be >= 0")
		}
		cfg.FailureThreshold = *raw.FailureThreshold
	}

	if len(raw.Targets) == 0 {
		return cfg, fmt.Errorf("at least one target is required")
	}

	seen := make(map[string]int)
	for i, entry := range raw.Targets {
		targets, err := expandTarget(i, entry)
		if err != nil {
			return cfg, err
		}
		for _, t := range targets {
			if prior, dup := seen[t.Identity()]; dup {
				return cfg, fmt.Errorf("targets[%d]: duplicate of targets[%d] (same identity)", i, prior)
			}
			seen[t.Identity()] = i
			cfg.Targets = append(cfg.Targets, t)
		}
	}

	return cfg, nil
}

// expandTarget validates one entry and expands a search_text list into one
// target per fragment, each with its own identity and transition history.
func expandTarget(index int, entry rawTarget) ([]monitor.Target, error) {
	if entry.URL == "" {
		return nil, fmt.Errorf("targets[%d]: url is required", index)
	}
	if len(entry.SearchText) == 0 {
		return nil, fmt.Errorf("targets[%d]: search_text is required", index)
	}

	var mode types.Mode
	switch entry.Mode {
	case string(types.ModeAppears):
		mode = types.ModeAppears
	case string(types.ModeDisappears):
		mode = types.ModeDisappears
	case "":
		return nil, fmt.Errorf("targets[%d]: mode is required (appears or disappears)", index)
	default:
		return nil, fmt.Errorf("targets[%d]: unrecognized mode %q (want appears or disappears)", index, entry.Mode)
	}

	if entry.Key != "" && len(entry.SearchText) > 1 {
		return nil, fmt.Errorf("targets[%d]: key requires a single search_text", index)
	}

	targets := make([]monitor.Target, 0, len(entry.SearchText))
	for j, text := range entry.SearchText {
		if text == "" {
			return nil, fmt.Errorf("targets[%d]: search_text[%d] is empty", index, j)
		}
		targets = append(targets, monitor.Target{
			Key:        entry.Key,
			URL:        entry.URL,
			SearchText: text,
			Mode:       mode,
			Note:       entry.Note,
		})
	}
	return targets, nil
}
