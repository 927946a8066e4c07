package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/go-drift/embedshim/cmd/shimctl/internal/config"
)

const testPage = `<!DOCTYPE html>
<html><head></head><body><div id="player"></div></body></html>`

const testHost = `
var events = [];
var player;
function onYouTubeIframeAPIReady() {
  player = new YT.Player("player", {
    videoId: "M7lc1UVf-VE",
    events: { onReady: function (e) { events.push("ready"); } }
  });
}
`

func capture(t *testing.T, in string) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	prevOut, prevIn := stdout, stdin
	stdout, stdin = &out, strings.NewReader(in)
	t.Cleanup(func() { stdout, stdin = prevOut, prevIn })
	return &out
}

func writeSite(t *testing.T) (pagePath, hostPath string) {
	t.Helper()
	dir := t.TempDir()
	pagePath = filepath.Join(dir, "page.html")
	hostPath = filepath.Join(dir, "host.js")
	require.NoError(t, os.WriteFile(pagePath, []byte(testPage), 0o644))
	require.NoError(t, os.WriteFile(hostPath, []byte(testHost), 0o644))
	return pagePath, hostPath
}

func TestParseRunArgs(t *testing.T) {
	opts, err := parseRunArgs([]string{"site/page.html", "a.js", "--settle", "2s", "b.js", "--no-document"})
	require.NoError(t, err)
	require.Equal(t, "site/page.html", opts.page)
	require.Equal(t, []string{"a.js", "b.js"}, opts.scripts)
	require.Equal(t, "site", opts.configDir)
	require.Equal(t, 2*time.Second, opts.settle)
	require.True(t, opts.noDocument)

	opts, err = parseRunArgs([]string{"--config=conf", "p.html"})
	require.NoError(t, err)
	require.Equal(t, "conf", opts.configDir)

	_, err = parseRunArgs(nil)
	require.ErrorContains(t, err, "page is required")
	_, err = parseRunArgs([]string{"p.html", "--bogus"})
	require.ErrorContains(t, err, "unknown flag")
	_, err = parseRunArgs([]string{"p.html", "--settle", "soon"})
	require.ErrorContains(t, err, "--settle")
}

func TestRunHarnessActivatesPlaceholder(t *testing.T) {
	pagePath, hostPath := writeSite(t)
	r, err := config.Resolve(filepath.Dir(pagePath))
	require.NoError(t, err)

	in := strings.Join([]string{
		`# activate the only player`,
		`{"channel":"shim/placeholder-activated","elementId":"player","data":{"entity":"Youtube","replaceWith":"youtube-video"}}`,
		`not json`,
	}, "\n")
	var out bytes.Buffer
	opts := runOptions{page: pagePath, scripts: []string{hostPath}, settle: 200 * time.Millisecond}
	require.NoError(t, runHarness(opts, r, zap.NewNop(), strings.NewReader(in), &out))

	got := out.String()
	require.Contains(t, got, `{"channel":"shim/installed","data":{"entity":"Youtube"}}`)
	require.Contains(t, got, `<iframe id="player"`)
	require.Contains(t, got, "autoplay=1")
	require.Contains(t, got, "enablejsapi=1")
}

func TestRunHarnessWithoutSignalsKeepsStub(t *testing.T) {
	pagePath, hostPath := writeSite(t)
	r, err := config.Resolve(filepath.Dir(pagePath))
	require.NoError(t, err)

	var out bytes.Buffer
	opts := runOptions{page: pagePath, scripts: []string{hostPath}, settle: 10 * time.Millisecond}
	require.NoError(t, runHarness(opts, r, zap.NewNop(), strings.NewReader(""), &out))

	got := out.String()
	require.Contains(t, got, `<iframe id="player"`)
	require.NotContains(t, got, "autoplay=1")
}

func TestRunHarnessReportsScriptErrors(t *testing.T) {
	pagePath, _ := writeSite(t)
	bad := filepath.Join(filepath.Dir(pagePath), "bad.js")
	require.NoError(t, os.WriteFile(bad, []byte("this is not javascript("), 0o644))
	r, err := config.Resolve(filepath.Dir(pagePath))
	require.NoError(t, err)

	opts := runOptions{page: pagePath, scripts: []string{bad}}
	err = runHarness(opts, r, zap.NewNop(), strings.NewReader(""), &bytes.Buffer{})
	require.ErrorContains(t, err, "script bad.js")
}

func TestConfigCommandPrintsDefaults(t *testing.T) {
	out := capture(t, "")
	require.NoError(t, execute([]string{"config", t.TempDir()}))
	got := out.String()
	require.Contains(t, got, "namespace: YT")
	require.Contains(t, got, "readyCallback: onYouTubeIframeAPIReady")
	require.Contains(t, got, "- PLAYING")
	require.Contains(t, got, "source: sim")
}

func TestExecuteDispatch(t *testing.T) {
	out := capture(t, "")
	require.NoError(t, execute([]string{"--version"}))
	require.Contains(t, out.String(), "shimctl version")

	out.Reset()
	require.NoError(t, execute([]string{"run", "--help"}))
	require.Contains(t, out.String(), "shimctl run <page.html>")

	var errOut bytes.Buffer
	prev := stderr
	stderr = &errOut
	t.Cleanup(func() { stderr = prev })
	require.ErrorContains(t, execute([]string{"nope"}), "unknown command")
}
