package cmd

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/go-drift/embedshim/cmd/shimctl/internal/config"
)

func init() {
	RegisterCommand(&Command{
		Name:  "config",
		Short: "Print the resolved configuration",
		Long: `Resolve shim.yaml in a directory (default: current directory) against
the built-in defaults and print the result as YAML.`,
		Usage: "shimctl config [dir]",
		Run:   runConfig,
	})
}

// resolvedView is the printable form of config.Resolved.
type resolvedView struct {
	Widget struct {
		Namespace        string   `yaml:"namespace"`
		ReadyCallback    string   `yaml:"readyCallback"`
		Entity           string   `yaml:"entity"`
		ReplacementTypes []string `yaml:"replacementTypes"`
		ResumeOn         []string `yaml:"resumeOn"`
		Autoplay         bool     `yaml:"autoplay"`
	} `yaml:"widget"`
	Embed struct {
		Hosts        []string `yaml:"hosts"`
		ControlParam string   `yaml:"controlParam"`
		ControlValue string   `yaml:"controlValue"`
	} `yaml:"embed"`
	Library struct {
		Source string `yaml:"source"`
		URL    string `yaml:"url,omitempty"`
		SHA256 string `yaml:"sha256,omitempty"`
	} `yaml:"library"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func viewOf(r *config.Resolved) resolvedView {
	var v resolvedView
	v.Widget.Namespace = r.Shim.Namespace
	v.Widget.ReadyCallback = r.Shim.HostReadyCallback
	v.Widget.Entity = r.Shim.Entity
	v.Widget.ReplacementTypes = r.Shim.ReplacementTypes
	for _, s := range r.Shim.Swallow.ResumeOn {
		v.Widget.ResumeOn = append(v.Widget.ResumeOn, s.String())
	}
	v.Widget.Autoplay = r.Shim.AutoplayOnActivate
	v.Embed.Hosts = r.Shim.Embed.Hosts
	v.Embed.ControlParam = r.Shim.Embed.ControlParam
	v.Embed.ControlValue = r.Shim.Embed.ControlValue
	v.Library.Source = r.LibrarySource
	v.Library.URL = r.LibraryURL
	v.Library.SHA256 = r.LibrarySHA256
	v.Log.Level = r.LogLevel.String()
	v.Log.Format = r.LogFormat
	return v
}

func runConfig(args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if len(args) > 1 {
		return fmt.Errorf("too many arguments\n\nUsage: shimctl config [dir]")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	r, err := config.Resolve(abs)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(viewOf(r))
}
