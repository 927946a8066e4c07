// Package signal carries named signals between the shim and the page's
// substitution subsystem. Inbound signals (element and placeholder
// announcements, activations) arrive as encoded payloads on named channels;
// outbound broadcasts (the installed notice) leave through an Outlet.
package signal

import (
	"encoding/json"
	"errors"
)

// Codec encodes and decodes signal payloads.
type Codec interface {
	// Encode converts a Go value to bytes for the substitution subsystem.
	Encode(value any) ([]byte, error)

	// Decode converts received bytes to a Go value.
	Decode(data []byte) (any, error)
}

// JSONCodec implements Codec using JSON, the format the substitution
// subsystem posts messages in.
type JSONCodec struct{}

// Encode serializes the value to JSON bytes.
func (JSONCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode deserializes JSON bytes to a generic Go value.
func (JSONCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DefaultCodec is the codec every Bus uses.
var DefaultCodec Codec = JSONCodec{}

// Standard errors for bus operations.
var (
	// ErrChannelNotRegistered indicates a signal arrived for a channel nobody listens on.
	ErrChannelNotRegistered = errors.New("signal channel not registered")

	// ErrNoOutlet indicates a broadcast was attempted before an Outlet was set.
	ErrNoOutlet = errors.New("signal outlet not configured")

	// ErrClosed indicates the bus has been closed.
	ErrClosed = errors.New("signal bus closed")
)
