package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/go-drift/embedshim/cmd/shimctl/internal/config"
	"github.com/go-drift/embedshim/pkg/jsbind"
	"github.com/go-drift/embedshim/pkg/loop"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/shim"
	"github.com/go-drift/embedshim/pkg/signal"
	"github.com/go-drift/embedshim/pkg/simplayer"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

func init() {
	RegisterCommand(&Command{
		Name:  "run",
		Short: "Run a page and host scripts against the shim",
		Long: `Parse an HTML page, install the shim into a script runtime over it,
and run the given host scripts. Signal lines are then read from stdin, one
JSON object per line:

  {"channel": "shim/placeholder-activated", "data": {"elementRef": 3, ...}}

An "elementId" field resolves to the element's ref and is merged into data,
so scripts need not know refs in advance. Broadcasts from the shim are
written to stdout in the same format. When stdin is exhausted the page is
left to settle, then the final document is printed.

The real library is simulated unless shim.yaml names a script URL.

Flags:
  --config DIR       Directory holding shim.yaml (default: the page's)
  --settle DURATION  Time to keep running after stdin closes (default: 500ms)
  --no-document      Do not print the final document`,
		Usage: "shimctl run <page.html> [host.js ...] [--config DIR] [--settle DURATION] [--no-document]",
		Run:   runRun,
	})
}

type runOptions struct {
	page       string
	scripts    []string
	configDir  string
	settle     time.Duration
	noDocument bool
}

func parseRunArgs(args []string) (runOptions, error) {
	opts := runOptions{settle: 500 * time.Millisecond}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--config requires a directory")
			}
			opts.configDir = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			opts.configDir = strings.TrimPrefix(arg, "--config=")
		case arg == "--settle":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--settle requires a duration")
			}
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return opts, fmt.Errorf("--settle: %w", err)
			}
			opts.settle = d
			i++
		case strings.HasPrefix(arg, "--settle="):
			d, err := time.ParseDuration(strings.TrimPrefix(arg, "--settle="))
			if err != nil {
				return opts, fmt.Errorf("--settle: %w", err)
			}
			opts.settle = d
		case arg == "--no-document":
			opts.noDocument = true
		case strings.HasPrefix(arg, "-"):
			return opts, fmt.Errorf("unknown flag %q", arg)
		case opts.page == "":
			opts.page = arg
		default:
			opts.scripts = append(opts.scripts, arg)
		}
	}
	if opts.page == "" {
		return opts, fmt.Errorf("page is required\n\nUsage: shimctl run <page.html> [host.js ...]")
	}
	if opts.configDir == "" {
		opts.configDir = filepath.Dir(opts.page)
	}
	return opts, nil
}

func runRun(args []string) error {
	opts, err := parseRunArgs(args)
	if err != nil {
		return err
	}
	r, err := config.Resolve(opts.configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(r)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	installLogger(logger)

	return runHarness(opts, r, logger, stdin, stdout)
}

// signalLine is one line of the stdin/stdout signal protocol.
type signalLine struct {
	Channel   string          `json:"channel"`
	Data      json.RawMessage `json:"data,omitempty"`
	ElementID string          `json:"elementId,omitempty"`
}

// lineOutlet writes broadcasts as signal lines.
type lineOutlet struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *lineOutlet) Emit(channel string, payload []byte) error {
	b, err := json.Marshal(signalLine{Channel: channel, Data: payload})
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err = fmt.Fprintf(o.w, "%s\n", b)
	return err
}

// rebindingSource rebinds the shim namespace once a library without a
// script-visible namespace of its own has loaded, so later constructions
// from script reach authentic players through the shim.
type rebindingSource struct {
	inner  shim.Source
	rebind func()
}

func (s *rebindingSource) Load(ctx context.Context, ready func(widgetapi.Library)) error {
	return s.inner.Load(ctx, func(lib widgetapi.Library) {
		s.rebind()
		ready(lib)
	})
}

func runHarness(opts runOptions, r *config.Resolved, logger *zap.Logger, in io.Reader, out io.Writer) error {
	src, err := os.ReadFile(opts.page)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}
	doc, err := page.ParseString(string(src))
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	l, err := loop.New()
	if err != nil {
		return fmt.Errorf("failed to start event loop: %w", err)
	}
	defer l.Close()
	rt, err := jsbind.New(l, doc)
	if err != nil {
		return err
	}
	bus := signal.NewBus(func(fn func()) { l.Post(fn) })
	defer bus.Close()
	bus.SetOutlet(&lineOutlet{w: out})

	var s *shim.Shim
	var source shim.Source
	switch r.LibrarySource {
	case config.SourceScript:
		source = &jsbind.ScriptSource{
			Runtime:       rt,
			URL:           r.LibraryURL,
			Namespace:     r.Shim.Namespace,
			ReadyCallback: r.Shim.HostReadyCallback,
			SHA256:        r.LibrarySHA256,
		}
	default:
		lib := simplayer.New(l, doc, r.Shim.Embed)
		source = &rebindingSource{
			inner:  simplayer.NewSource(lib),
			rebind: func() { rt.Globals().Bind(r.Shim.Namespace, s.Namespace()) },
		}
	}

	s, err = shim.New(shim.Deps{
		Loop:     l,
		Document: doc,
		Globals:  rt.Globals(),
		Bus:      bus,
		Source:   source,
		Config:   r.Shim,
	})
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		return err
	}
	rt.Attach(s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// Host script shares the loop goroutine with the timers and promises it
	// schedules.
	scripted := make(chan error, 1)
	l.Post(func() { scripted <- runScripts(rt, opts.scripts) })
	if err := <-scripted; err != nil {
		cancel()
		<-done
		return err
	}

	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var line signalLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			logger.Warn("skipping malformed signal line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		l.Post(func() { deliverLine(bus, doc, logger, line) })
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read signals: %w", err)
	}

	time.Sleep(opts.settle)
	cancel()
	<-done
	s.Close()

	if opts.noDocument {
		return nil
	}
	if err := doc.Render(out); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out)
	return err
}

func runScripts(rt *jsbind.Runtime, paths []string) error {
	for _, path := range paths {
		code, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}
		if err := rt.RunScript(filepath.Base(path), string(code)); err != nil {
			return fmt.Errorf("script %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func deliverLine(bus *signal.Bus, doc *page.Document, logger *zap.Logger, line signalLine) {
	payload := []byte(line.Data)
	if line.ElementID != "" {
		el := doc.GetElementByID(line.ElementID)
		if el == nil {
			logger.Warn("signal names unknown element", zap.String("elementId", line.ElementID))
			return
		}
		data := map[string]any{}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &data); err != nil {
				logger.Warn("signal data is not an object", zap.String("channel", line.Channel), zap.Error(err))
				return
			}
		}
		data["elementRef"] = el.Ref()
		b, err := json.Marshal(data)
		if err != nil {
			logger.Warn("failed to encode signal", zap.Error(err))
			return
		}
		payload = b
	}
	if len(payload) == 0 {
		payload = []byte("null")
	}
	if err := bus.HandleEvent(line.Channel, payload); err != nil {
		logger.Warn("signal not delivered", zap.String("channel", line.Channel), zap.Error(err))
	}
}
