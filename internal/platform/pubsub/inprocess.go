// Package pubsub provides ports.PubSub implementations: an in-process
// fanout (sufficient for the single-process deployment spec.md assumes)
// and a Redis-backed one for horizontal deployments.
package pubsub

import (
	"context"
	"sync"

	"github.com/codearena/core/internal/ports"
)

// InProcess fans a published message out to every subscriber of its
// channel within the same process. No network hop, no serialization
// requirement beyond what the caller already did.
type InProcess struct {
	mu   sync.RWMutex
	subs map[string][]chan ports.Message
}

// New returns an empty in-process pub/sub.
func New() *InProcess {
	return &InProcess{subs: make(map[string][]chan ports.Message)}
}

func (p *InProcess) Publish(_ context.Context, channel string, payload []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	msg := ports.Message{Channel: channel, Payload: payload}
	for _, ch := range p.subs[channel] {
		select {
		case ch <- msg:
		default:
			// Slow subscriber; drop rather than block the publisher.
		}
	}
	return nil
}

func (p *InProcess) Subscribe(_ context.Context, channels ...string) ports.Subscription {
	ch := make(chan ports.Message, 64)
	p.mu.Lock()
	for _, c := range channels {
		p.subs[c] = append(p.subs[c], ch)
	}
	p.mu.Unlock()

	return &subscription{parent: p, channels: channels, ch: ch}
}

type subscription struct {
	parent   *InProcess
	channels []string
	ch       chan ports.Message
	once     sync.Once
}

func (s *subscription) Channel() <-chan ports.Message { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.parent.mu.Lock()
		defer s.parent.mu.Unlock()
		for _, c := range s.channels {
			subs := s.parent.subs[c]
			for i, existing := range subs {
				if existing == s.ch {
					s.parent.subs[c] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		}
		close(s.ch)
	})
	return nil
}
