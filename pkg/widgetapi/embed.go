package widgetapi

import (
	"net/url"
	"strings"
)

// EmbedPolicy holds the embed URL conventions of the widget library's frames.
type EmbedPolicy struct {
	// Hosts are the frame hosts recognized as the widget's own.
	Hosts []string
	// DefaultOrigin is used when no recognized frame exists to borrow from.
	DefaultOrigin string
	// EmbedPath is the path prefix content ids are appended to.
	EmbedPath string
	// ControlParam and ControlValue enable host-originated programmatic
	// control of the frame. Without it the authentic ready event never fires.
	ControlParam string
	ControlValue string
	// WatchURL formats the public URL of a content id; "%s" is replaced.
	WatchURL string
}

// DefaultEmbedPolicy returns the conventions of the production library.
func DefaultEmbedPolicy() EmbedPolicy {
	return EmbedPolicy{
		Hosts: []string{
			"www.youtube.com",
			"youtube.com",
			"www.youtube-nocookie.com",
			"youtube-nocookie.com",
		},
		DefaultOrigin: "https://www.youtube.com",
		EmbedPath:     "/embed/",
		ControlParam:  "enablejsapi",
		ControlValue:  "1",
		WatchURL:      "https://www.youtube.com/watch?v=%s",
	}
}

// Recognized reports whether rawURL points at one of the widget hosts.
func (p EmbedPolicy) Recognized(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range p.Hosts {
		if host == h {
			return true
		}
	}
	return false
}

// VideoIDFromURL extracts the content id from a recognized embed URL.
func (p EmbedPolicy) VideoIDFromURL(rawURL string) string {
	if !p.Recognized(rawURL) {
		return ""
	}
	u, _ := url.Parse(rawURL)
	if !strings.HasPrefix(u.Path, p.EmbedPath) {
		return ""
	}
	id := strings.TrimPrefix(u.Path, p.EmbedPath)
	if i := strings.IndexByte(id, '/'); i >= 0 {
		id = id[:i]
	}
	return id
}

// Compose builds the frame URL for a player. The path and query of existing
// are reused when it is a recognized frame URL; videoID and vars are laid
// over it, and the control parameter is always forced on.
func (p EmbedPolicy) Compose(existing, videoID string, vars map[string]string) string {
	var u *url.URL
	if existing != "" && p.Recognized(existing) {
		u, _ = url.Parse(existing)
	}
	if u == nil {
		u, _ = url.Parse(p.DefaultOrigin)
		if u == nil {
			u = &url.URL{Scheme: "https", Host: "www.youtube.com"}
		}
		u.Path = p.EmbedPath
	}
	if videoID != "" {
		u.Path = p.EmbedPath + videoID
	}

	q := u.Query()
	for k, v := range vars {
		q.Set(k, v)
	}
	if p.ControlParam != "" {
		q.Set(p.ControlParam, p.ControlValue)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Watch returns the public URL for a content id, or "" without one.
func (p EmbedPolicy) Watch(videoID string) string {
	if videoID == "" || p.WatchURL == "" {
		return ""
	}
	return strings.Replace(p.WatchURL, "%s", url.QueryEscape(videoID), 1)
}
