package chat

import (
	"context"

	"golang.org/x/time/rate"
)

// Sender chunks outbound text and rate-limits sends so a long AI reply never
// floods the gateway.
type Sender struct {
	transport Transport
	limiter   *rate.Limiter
	max       int
}

// NewSender wraps a transport. Sends are limited to one message per second
// with a small burst, chunked to MaxMessageLen.
func NewSender(transport Transport) *Sender {
	return &Sender{
		transport: transport,
		limiter:   rate.NewLimiter(rate.Limit(1), 3),
		max:       MaxMessageLen,
	}
}

// Send delivers text to a conversation, one chunk per gateway message.
func (s *Sender) Send(ctx context.Context, chatID, text string) error {
	for _, chunk := range Chunk(text, s.max) {
		if chunk == "" {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := s.transport.Send(ctx, chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}
