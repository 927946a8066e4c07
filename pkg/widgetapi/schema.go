package widgetapi

import (
	"fmt"
	"strconv"
)

// MemberKind tells bindings how to expose a member.
type MemberKind int

const (
	// MemberMethod is invoked with arguments.
	MemberMethod MemberKind = iota
	// MemberField is a plain data value exposed as a read/write property.
	MemberField
)

// Member is one entry of the player object's fixed member table.
type Member struct {
	Name string
	Kind MemberKind
}

type method func(p Player, args []any) (any, error)

var methods = map[string]method{
	"playVideo":  func(p Player, _ []any) (any, error) { p.PlayVideo(); return nil, nil },
	"pauseVideo": func(p Player, _ []any) (any, error) { p.PauseVideo(); return nil, nil },
	"stopVideo":  func(p Player, _ []any) (any, error) { p.StopVideo(); return nil, nil },
	"seekTo": func(p Player, args []any) (any, error) {
		p.SeekTo(argFloat(args, 0), argBool(args, 1))
		return nil, nil
	},
	"loadVideoById": func(p Player, args []any) (any, error) {
		p.LoadVideoByID(argString(args, 0), argFloat(args, 1))
		return nil, nil
	},
	"cueVideoById": func(p Player, args []any) (any, error) {
		p.CueVideoByID(argString(args, 0), argFloat(args, 1))
		return nil, nil
	},
	"mute":           func(p Player, _ []any) (any, error) { p.Mute(); return nil, nil },
	"unMute":         func(p Player, _ []any) (any, error) { p.UnMute(); return nil, nil },
	"isMuted":        func(p Player, _ []any) (any, error) { return p.IsMuted(), nil },
	"setVolume":      func(p Player, args []any) (any, error) { p.SetVolume(int(argFloat(args, 0))); return nil, nil },
	"getVolume":      func(p Player, _ []any) (any, error) { return p.GetVolume(), nil },
	"getCurrentTime": func(p Player, _ []any) (any, error) { return p.GetCurrentTime(), nil },
	"getDuration":    func(p Player, _ []any) (any, error) { return p.GetDuration(), nil },
	"getPlayerState": func(p Player, _ []any) (any, error) { return int(p.GetPlayerState()), nil },
	"getVideoUrl":    func(p Player, _ []any) (any, error) { return p.GetVideoURL(), nil },
	"getIframe":      func(p Player, _ []any) (any, error) { return p.GetIframe(), nil },
	"destroy":        func(p Player, _ []any) (any, error) { p.Destroy(); return nil, nil },
}

// Fields are the plain data members of a player object.
var Fields = []string{"id", "playerInfo"}

// Members returns the full member table in a stable order: fields first,
// then methods. addEventListener is handled by bindings directly because
// its argument is a callback.
func Members() []Member {
	out := make([]Member, 0, len(Fields)+len(methodOrder))
	for _, f := range Fields {
		out = append(out, Member{Name: f, Kind: MemberField})
	}
	for _, m := range methodOrder {
		out = append(out, Member{Name: m, Kind: MemberMethod})
	}
	return out
}

var methodOrder = []string{
	"playVideo", "pauseVideo", "stopVideo", "seekTo",
	"loadVideoById", "cueVideoById",
	"mute", "unMute", "isMuted", "setVolume", "getVolume",
	"getCurrentTime", "getDuration", "getPlayerState", "getVideoUrl",
	"getIframe", "destroy",
}

// BoundMethod is a method whose receiver has been fixed.
type BoundMethod func(args ...any) (any, error)

// Bind returns every schema method bound to p as receiver.
func Bind(p Player) map[string]BoundMethod {
	out := make(map[string]BoundMethod, len(methods))
	for name, m := range methods {
		out[name] = func(args ...any) (any, error) { return m(p, args) }
	}
	return out
}

// IsField reports whether name is a data member.
func IsField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}

func argString(args []any, i int) string {
	if i >= len(args) || args[i] == nil {
		return ""
	}
	switch v := args[i].(type) {
	case string:
		return v
	case map[string]any:
		// loadVideoById({videoId: ..., startSeconds: ...}) object form.
		if id, ok := v["videoId"].(string); ok {
			return id
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func argFloat(args []any, i int) float64 {
	if i >= len(args) {
		if i == 1 && len(args) == 1 {
			if m, ok := args[0].(map[string]any); ok {
				return toFloat(m["startSeconds"])
			}
		}
		return 0
	}
	return toFloat(args[i])
}

func argBool(args []any, i int) bool {
	if i >= len(args) {
		return false
	}
	switch v := args[i].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return toFloat(v) != 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
