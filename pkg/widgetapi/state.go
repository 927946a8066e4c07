package widgetapi

// PlayerState is the playback state reported by onStateChange. The integer
// codes are the ones the real widget API uses; host code compares against
// them as literals, so they must never be renumbered.
type PlayerState int

const (
	// StateUnstarted indicates the player has not started playback.
	StateUnstarted PlayerState = -1

	// StateEnded indicates playback reached the end of the content.
	StateEnded PlayerState = 0

	// StatePlaying indicates the player is actively playing.
	StatePlaying PlayerState = 1

	// StatePaused indicates the player is paused and can be resumed.
	StatePaused PlayerState = 2

	// StateBuffering indicates the player is buffering before playback can continue.
	StateBuffering PlayerState = 3

	// StateCued indicates content is cued and ready to play.
	StateCued PlayerState = 5
)

// String returns the enumeration name the real API exposes for the state.
func (s PlayerState) String() string {
	switch s {
	case StateUnstarted:
		return "UNSTARTED"
	case StateEnded:
		return "ENDED"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	case StateBuffering:
		return "BUFFERING"
	case StateCued:
		return "CUED"
	default:
		return "UNKNOWN"
	}
}

// PlayerStates returns the state enumeration as exposed on the namespace.
func PlayerStates() map[string]PlayerState {
	return map[string]PlayerState{
		"UNSTARTED": StateUnstarted,
		"ENDED":     StateEnded,
		"PLAYING":   StatePlaying,
		"PAUSED":    StatePaused,
		"BUFFERING": StateBuffering,
		"CUED":      StateCued,
	}
}

// ParsePlayerState maps an enumeration name back to its state.
func ParsePlayerState(name string) (PlayerState, bool) {
	s, ok := PlayerStates()[name]
	return s, ok
}
