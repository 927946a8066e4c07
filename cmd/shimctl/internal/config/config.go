// Package config loads the optional shim.yaml next to a page and resolves it
// into the shim's runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/embedshim/pkg/shim"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

// FileName is the configuration file looked up in a page directory.
const FileName = "shim.yaml"

// Library sources.
const (
	SourceScript = "script"
	SourceSim    = "sim"
)

// Config represents the optional shim.yaml configuration.
type Config struct {
	Widget  WidgetConfig  `yaml:"widget"`
	Embed   EmbedConfig   `yaml:"embed"`
	Library LibraryConfig `yaml:"library"`
	Log     LogConfig     `yaml:"log"`
}

// WidgetConfig names the widget kind the shim stands in for.
type WidgetConfig struct {
	Namespace        string   `yaml:"namespace,omitempty"`
	ReadyCallback    string   `yaml:"readyCallback,omitempty"`
	Entity           string   `yaml:"entity,omitempty"`
	ReplacementTypes []string `yaml:"replacementTypes,omitempty"`
	ResumeOn         []string `yaml:"resumeOn,omitempty"`
	Autoplay         *bool    `yaml:"autoplay,omitempty"`
}

// EmbedConfig overrides the frame URL conventions.
type EmbedConfig struct {
	Hosts        []string `yaml:"hosts,omitempty"`
	ControlParam string   `yaml:"controlParam,omitempty"`
	ControlValue string   `yaml:"controlValue,omitempty"`
}

// LibraryConfig selects where the real library comes from.
type LibraryConfig struct {
	Source string `yaml:"source,omitempty"`
	URL    string `yaml:"url,omitempty"`
	SHA256 string `yaml:"sha256,omitempty"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root          string
	Shim          shim.Config
	LibrarySource string
	LibraryURL    string
	LibrarySHA256 string
	LogLevel      zapcore.Level
	LogFormat     string
}

// LoadOptional reads shim.yaml if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	return &cfg, nil
}

// Resolve loads shim.yaml (if present) and resolves defaults.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}

	sc := shim.DefaultConfig()
	w := cfg.Widget
	if v := strings.TrimSpace(w.Namespace); v != "" {
		sc.Namespace = v
	}
	if v := strings.TrimSpace(w.ReadyCallback); v != "" {
		sc.HostReadyCallback = v
	}
	if v := strings.TrimSpace(w.Entity); v != "" {
		sc.Entity = v
	}
	if w.ReplacementTypes != nil {
		sc.ReplacementTypes = w.ReplacementTypes
	}
	if w.ResumeOn != nil {
		states := make([]widgetapi.PlayerState, 0, len(w.ResumeOn))
		for _, name := range w.ResumeOn {
			s, ok := widgetapi.ParsePlayerState(strings.ToUpper(strings.TrimSpace(name)))
			if !ok {
				return nil, fmt.Errorf("widget.resumeOn: unknown player state %q", name)
			}
			states = append(states, s)
		}
		sc.Swallow = shim.SwallowPolicy{ResumeOn: states}
	}
	if w.Autoplay != nil {
		sc.AutoplayOnActivate = *w.Autoplay
	}

	if len(cfg.Embed.Hosts) > 0 {
		sc.Embed.Hosts = cfg.Embed.Hosts
	}
	if v := strings.TrimSpace(cfg.Embed.ControlParam); v != "" {
		sc.Embed.ControlParam = v
	}
	if v := strings.TrimSpace(cfg.Embed.ControlValue); v != "" {
		sc.Embed.ControlValue = v
	}

	if err := validateIdentifier("widget.namespace", sc.Namespace); err != nil {
		return nil, err
	}
	if err := validateIdentifier("widget.readyCallback", sc.HostReadyCallback); err != nil {
		return nil, err
	}

	source := strings.ToLower(strings.TrimSpace(cfg.Library.Source))
	libURL := strings.TrimSpace(cfg.Library.URL)
	switch {
	case source == "" && libURL != "":
		source = SourceScript
	case source == "":
		source = SourceSim
	}
	switch source {
	case SourceSim:
	case SourceScript:
		if libURL == "" {
			return nil, fmt.Errorf("library.url is required when library.source is %q", SourceScript)
		}
	default:
		return nil, fmt.Errorf("library.source must be %q or %q (got %q)", SourceScript, SourceSim, source)
	}

	digest := strings.ToLower(strings.TrimSpace(cfg.Library.SHA256))
	if digest != "" && !isHexDigest(digest) {
		return nil, fmt.Errorf("library.sha256 must be 64 hex characters (got %q)", cfg.Library.SHA256)
	}

	level := zapcore.InfoLevel
	if v := strings.TrimSpace(cfg.Log.Level); v != "" {
		level, err = zapcore.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}
	format := strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log.format must be console or json (got %q)", format)
	}

	return &Resolved{
		Root:          dir,
		Shim:          sc,
		LibrarySource: source,
		LibraryURL:    libURL,
		LibrarySHA256: digest,
		LogLevel:      level,
		LogFormat:     format,
	}, nil
}

// validateIdentifier checks that a global name is usable from script.
func validateIdentifier(field, name string) error {
	if name == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return fmt.Errorf("%s is not a valid identifier (%q)", field, name)
		}
	}
	return nil
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
