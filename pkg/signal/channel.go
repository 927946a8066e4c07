package signal

import (
	"sync"
	"sync/atomic"
)

// Handler receives signals delivered on a Channel.
type Handler struct {
	OnEvent func(data any)
	OnError func(err error)
}

// Subscription represents an active listener on a Channel.
type Subscription struct {
	channel  *Channel
	handler  *Handler
	canceled atomic.Bool
}

// Cancel stops delivery to this subscription.
func (s *Subscription) Cancel() {
	if s.canceled.CompareAndSwap(false, true) {
		s.channel.removeSubscription(s)
	}
}

// IsCanceled returns true if this subscription has been canceled.
func (s *Subscription) IsCanceled() bool {
	return s.canceled.Load()
}

// Channel is a named inbound signal stream with any number of listeners.
type Channel struct {
	name          string
	subscriptions []*Subscription
	mu            sync.Mutex
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// Listen subscribes to signals on this channel.
func (c *Channel) Listen(handler Handler) *Subscription {
	sub := &Subscription{channel: c, handler: &handler}
	c.mu.Lock()
	c.subscriptions = append(c.subscriptions, sub)
	c.mu.Unlock()
	return sub
}

// Listeners returns the number of active subscriptions.
func (c *Channel) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions)
}

func (c *Channel) removeSubscription(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subscriptions {
		if s == sub {
			c.subscriptions = append(c.subscriptions[:i], c.subscriptions[i+1:]...)
			return
		}
	}
}

func (c *Channel) snapshot() []*Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := make([]*Subscription, len(c.subscriptions))
	copy(subs, c.subscriptions)
	return subs
}

func (c *Channel) dispatchEvent(data any) {
	for _, sub := range c.snapshot() {
		if !sub.IsCanceled() && sub.handler.OnEvent != nil {
			sub.handler.OnEvent(data)
		}
	}
}

func (c *Channel) dispatchError(err error) {
	for _, sub := range c.snapshot() {
		if !sub.IsCanceled() && sub.handler.OnError != nil {
			sub.handler.OnError(err)
		}
	}
}
