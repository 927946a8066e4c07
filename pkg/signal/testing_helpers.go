package signal

import "sync"

// Emitted is one broadcast captured by a Recorder.
type Emitted struct {
	Channel string
	Data    any
}

// Recorder is an Outlet that keeps every broadcast, decoded, for assertions.
type Recorder struct {
	mu    sync.Mutex
	calls []Emitted
}

func (r *Recorder) Emit(channel string, payload []byte) error {
	data, err := DefaultCodec.Decode(payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.calls = append(r.calls, Emitted{Channel: channel, Data: data})
	r.mu.Unlock()
	return nil
}

// Calls returns the broadcasts seen so far.
func (r *Recorder) Calls() []Emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Emitted, len(r.calls))
	copy(out, r.calls)
	return out
}
