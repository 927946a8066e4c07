package shim

import (
	"slices"

	"github.com/go-drift/embedshim/pkg/widgetapi"
)

// Signal channel names shared with the substitution subsystem.
const (
	ChannelElementAnnounced     = "shim/element-announced"
	ChannelPlaceholderAnnounced = "shim/placeholder-announced"
	ChannelPlaceholderActivated = "shim/placeholder-activated"
	ChannelInstalled            = "shim/installed"
)

// Config holds the names and policies that tie the shim to one widget kind.
type Config struct {
	// Namespace is the global name the widget API lives under.
	Namespace string
	// HostReadyCallback is the global the host page defines to learn the
	// API has loaded.
	HostReadyCallback string
	// Entity and ReplacementTypes are the discriminators signals must carry
	// to concern this widget kind.
	Entity           string
	ReplacementTypes []string
	// Embed describes the frame URL conventions.
	Embed widgetapi.EmbedPolicy
	// Swallow filters replayed state-change listeners.
	Swallow SwallowPolicy
	// AutoplayOnActivate starts playback of the authentic player once the
	// user has opted in through the placeholder.
	AutoplayOnActivate bool
}

// DefaultConfig returns the configuration for the production widget.
func DefaultConfig() Config {
	return Config{
		Namespace:          "YT",
		HostReadyCallback:  "onYouTubeIframeAPIReady",
		Entity:             "Youtube",
		ReplacementTypes:   []string{"youtube-video"},
		Embed:              widgetapi.DefaultEmbedPolicy(),
		Swallow:            DefaultSwallowPolicy(),
		AutoplayOnActivate: true,
	}
}

func (c Config) concerns(entity, replaceWith string) bool {
	if entity != c.Entity {
		return false
	}
	if len(c.ReplacementTypes) == 0 {
		return true
	}
	return slices.Contains(c.ReplacementTypes, replaceWith)
}

// SwallowPolicy decides which states a replayed state-change listener drops
// right after the authentic player loads. The authentic player announces a
// burst of transient states (UNSTARTED, CUED, BUFFERING) that would
// contradict the synthetic state a caller already received from the stub;
// everything is dropped until one of ResumeOn is seen.
type SwallowPolicy struct {
	ResumeOn []widgetapi.PlayerState
}

// DefaultSwallowPolicy resumes delivery on PLAYING or ENDED.
func DefaultSwallowPolicy() SwallowPolicy {
	return SwallowPolicy{ResumeOn: []widgetapi.PlayerState{widgetapi.StatePlaying, widgetapi.StateEnded}}
}

// Wrap returns l filtered by the policy. An empty policy swallows nothing.
func (p SwallowPolicy) Wrap(l widgetapi.Listener) widgetapi.Listener {
	if len(p.ResumeOn) == 0 {
		return l
	}
	resumed := false
	return func(e widgetapi.Event) {
		if !resumed {
			state, ok := e.Data.(widgetapi.PlayerState)
			if !ok || !slices.Contains(p.ResumeOn, state) {
				Logger().Debug("swallowed early state change")
				return
			}
			resumed = true
		}
		l(e)
	}
}
