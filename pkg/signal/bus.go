package signal

import (
	"fmt"
	"sync"
)

// Outlet sends encoded broadcasts to the substitution subsystem.
type Outlet interface {
	Emit(channel string, payload []byte) error
}

// OutletFunc adapts a function to Outlet.
type OutletFunc func(channel string, payload []byte) error

func (f OutletFunc) Emit(channel string, payload []byte) error {
	return f(channel, payload)
}

// Bus owns the named channels of one page.
type Bus struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	outlet   Outlet
	codec    Codec
	dispatch func(func())
	closed   bool
}

// NewBus creates a bus. dispatch schedules delivery to listeners (normally
// the shim loop's Post); nil delivers synchronously on the caller.
func NewBus(dispatch func(func())) *Bus {
	return &Bus{
		channels: make(map[string]*Channel),
		codec:    DefaultCodec,
		dispatch: dispatch,
	}
}

// SetOutlet sets where broadcasts go.
func (b *Bus) SetOutlet(o Outlet) {
	b.mu.Lock()
	b.outlet = o
	b.mu.Unlock()
}

// Channel returns the named channel, creating it on first use.
func (b *Bus) Channel(name string) *Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[name]
	if !ok {
		ch = &Channel{name: name}
		b.channels[name] = ch
	}
	return ch
}

// HandleEvent is the inbound entry point: the substitution subsystem posts an
// encoded payload for a channel.
func (b *Bus) HandleEvent(channel string, payload []byte) error {
	ch, codec, err := b.lookup(channel)
	if err != nil {
		return err
	}

	data, err := codec.Decode(payload)
	if err != nil {
		b.deliver(func() { ch.dispatchError(err) })
		return err
	}
	b.deliver(func() { ch.dispatchEvent(data) })
	return nil
}

// Deliver sends an already-decoded value to a channel's listeners.
func (b *Bus) Deliver(channel string, data any) error {
	ch, _, err := b.lookup(channel)
	if err != nil {
		return err
	}
	b.deliver(func() { ch.dispatchEvent(data) })
	return nil
}

// Broadcast encodes payload and emits it through the outlet.
func (b *Bus) Broadcast(channel string, payload any) error {
	b.mu.RLock()
	outlet, codec, closed := b.outlet, b.codec, b.closed
	b.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if outlet == nil {
		return ErrNoOutlet
	}
	data, err := codec.Encode(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", channel, err)
	}
	return outlet.Emit(channel, data)
}

// Close drops every subscription and rejects further traffic.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	channels := b.channels
	b.channels = make(map[string]*Channel)
	b.mu.Unlock()

	for _, ch := range channels {
		for _, sub := range ch.snapshot() {
			sub.Cancel()
		}
	}
}

func (b *Bus) lookup(channel string) (*Channel, Codec, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, nil, ErrClosed
	}
	ch, ok := b.channels[channel]
	if !ok || ch.Listeners() == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrChannelNotRegistered, channel)
	}
	return ch, b.codec, nil
}

func (b *Bus) deliver(fn func()) {
	if b.dispatch == nil {
		fn()
		return
	}
	b.dispatch(fn)
}
