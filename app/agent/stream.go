package agent

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is the terminal error of a caller-cancelled stream.
var ErrCancelled = errors.New("stream cancelled")

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeStreaming
	OutcomeCompleted
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeStreaming:
		return "streaming"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Stream is one in-flight answer. Fragments arrive on Tokens in exact
// production order; the channel closes once the stream reaches a terminal
// state, after which Outcome reports how it ended. Consumers must either
// drain Tokens or call Cancel, otherwise the producer blocks.
type Stream struct {
	tokens     chan string
	quit       chan struct{}
	done       chan struct{}
	cancelOnce sync.Once

	mu      sync.Mutex
	outcome Outcome
	err     error
}

func newStream() *Stream {
	return &Stream{
		tokens:  make(chan string, 8),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		outcome: OutcomePending,
	}
}

func (s *Stream) Tokens() <-chan string {
	return s.tokens
}

// Cancel stops fragment delivery and signals the producer to stop
// generating. Safe to call multiple times and after completion.
func (s *Stream) Cancel() {
	s.cancelOnce.Do(func() { close(s.quit) })
}

// Outcome reports the terminal state. Only meaningful once Tokens has
// closed (or Wait returned); before that it reports the current phase.
func (s *Stream) Outcome() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.err
}

// Wait blocks until the stream is terminal.
func (s *Stream) Wait() (Outcome, error) {
	<-s.done
	return s.Outcome()
}

// emit delivers one fragment. Cancellation is checked before every
// delivery so a cancelled caller never receives further output.
func (s *Stream) emit(ctx context.Context, token string) error {
	select {
	case <-s.quit:
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	if s.outcome == OutcomePending {
		s.outcome = OutcomeStreaming
	}
	s.mu.Unlock()

	select {
	case s.tokens <- token:
		return nil
	case <-s.quit:
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stream) finish(outcome Outcome, err error) {
	s.mu.Lock()
	s.outcome = outcome
	s.err = err
	s.mu.Unlock()

	close(s.tokens)
	close(s.done)
}
