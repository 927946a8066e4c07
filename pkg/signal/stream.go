package signal

import "github.com/go-drift/embedshim/pkg/errors"

// Stream decodes a channel's raw payloads into T before handing them to
// listeners. Payloads that fail to parse are reported and dropped.
type Stream[T any] struct {
	channel *Channel
	parser  func(data any) (T, error)
}

// NewStream wraps a channel with a typed parser.
func NewStream[T any](channel *Channel, parser func(data any) (T, error)) *Stream[T] {
	return &Stream[T]{channel: channel, parser: parser}
}

// Listen subscribes handler and returns the unsubscribe function.
func (s *Stream[T]) Listen(handler func(T)) (unsubscribe func()) {
	name := s.channel.Name()
	sub := s.channel.Listen(Handler{
		OnEvent: func(data any) {
			val, err := s.parser(data)
			if err != nil {
				errors.Report(&errors.ShimError{
					Op:     "stream.parse",
					Kind:   errors.KindParsing,
					Signal: name,
					Err:    err,
				})
				return
			}
			handler(val)
		},
		OnError: func(err error) {
			errors.Report(&errors.ShimError{
				Op:     "stream.error",
				Kind:   errors.KindSignal,
				Signal: name,
				Err:    err,
			})
		},
	})
	return sub.Cancel
}
