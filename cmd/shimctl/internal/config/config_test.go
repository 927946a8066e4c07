package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zapcore"

	"github.com/go-drift/embedshim/pkg/shim"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestResolveDefaults(t *testing.T) {
	r, err := Resolve(t.TempDir())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if diff := cmp.Diff(shim.DefaultConfig(), r.Shim); diff != "" {
		t.Errorf("shim config mismatch (-want +got):\n%s", diff)
	}
	if r.LibrarySource != SourceSim {
		t.Errorf("LibrarySource = %q, want %q", r.LibrarySource, SourceSim)
	}
	if r.LogLevel != zapcore.InfoLevel || r.LogFormat != "console" {
		t.Errorf("log = %v/%s, want info/console", r.LogLevel, r.LogFormat)
	}
}

func TestResolveOverrides(t *testing.T) {
	dir := writeConfig(t, `
widget:
  namespace: Vid
  readyCallback: onVidReady
  entity: Vimeo
  replacementTypes: [vimeo-video]
  resumeOn: [playing, paused]
  autoplay: false
embed:
  hosts: [player.example.com]
  controlParam: api
library:
  url: https://example.com/api.js
log:
  level: debug
  format: json
`)
	r, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := shim.DefaultConfig()
	want.Namespace = "Vid"
	want.HostReadyCallback = "onVidReady"
	want.Entity = "Vimeo"
	want.ReplacementTypes = []string{"vimeo-video"}
	want.Swallow = shim.SwallowPolicy{ResumeOn: []widgetapi.PlayerState{widgetapi.StatePlaying, widgetapi.StatePaused}}
	want.AutoplayOnActivate = false
	want.Embed.Hosts = []string{"player.example.com"}
	want.Embed.ControlParam = "api"
	if diff := cmp.Diff(want, r.Shim); diff != "" {
		t.Errorf("shim config mismatch (-want +got):\n%s", diff)
	}
	if r.LibrarySource != SourceScript || r.LibraryURL != "https://example.com/api.js" {
		t.Errorf("library = %s %s", r.LibrarySource, r.LibraryURL)
	}
	if r.LogLevel != zapcore.DebugLevel || r.LogFormat != "json" {
		t.Errorf("log = %v/%s, want debug/json", r.LogLevel, r.LogFormat)
	}
}

func TestResolveRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "widget: [", "failed to parse"},
		{"bad namespace", "widget:\n  namespace: \"1YT\"\n", "widget.namespace"},
		{"bad callback", "widget:\n  readyCallback: on-ready\n", "widget.readyCallback"},
		{"bad state", "widget:\n  resumeOn: [FLYING]\n", "unknown player state"},
		{"script without url", "library:\n  source: script\n", "library.url is required"},
		{"bad source", "library:\n  source: cdn\n", "library.source"},
		{"bad digest", "library:\n  url: https://x/api.js\n  sha256: abc\n", "library.sha256"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Resolve() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}
