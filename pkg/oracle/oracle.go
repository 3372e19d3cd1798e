package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jwebster45206/village-mystery/pkg/chat"
)

const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxAttempts = 2
	DefaultRetryDelay  = 500 * time.Millisecond
)

// Call outcomes reported to an Observer.
const (
	OutcomeOK          = "ok"
	OutcomeMalformed   = "malformed"
	OutcomeUnavailable = "unavailable"
)

// LLM is the chat completion service the oracle reasons with.
type LLM interface {
	Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.Completion, error)
}

// Asker asks one structured question and decodes the final answer into out.
type Asker interface {
	Ask(ctx context.Context, site string, messages []chat.ChatMessage, out any) error
}

// Observer is told about every attempt, for metrics.
type Observer func(site, outcome string, elapsed time.Duration)

// Oracle turns an LLM into a structured question answering function. Each
// attempt runs under its own timeout; unavailable and malformed replies are
// retried with a linear backoff.
type Oracle struct {
	llm         LLM
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
	observer    Observer
	logger      *slog.Logger
}

var _ Asker = (*Oracle)(nil)

// Option configures an Oracle.
type Option func(*Oracle)

func WithTimeout(d time.Duration) Option {
	return func(o *Oracle) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(o *Oracle) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(o *Oracle) {
		if d >= 0 {
			o.retryDelay = d
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *Oracle) { o.observer = obs }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Oracle) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an Oracle over llm.
func New(llm LLM, opts ...Option) *Oracle {
	o := &Oracle{
		llm:         llm,
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ask sends messages and decodes the final element of the reply into out.
// Errors wrap ErrUnavailable or ErrMalformedResponse.
func (o *Oracle) Ask(ctx context.Context, site string, messages []chat.ChatMessage, out any) error {
	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s: %v", ErrUnavailable, site, ctx.Err())
			case <-time.After(o.retryDelay * time.Duration(attempt-1)):
			}
		}

		start := time.Now()
		lastErr = o.attempt(ctx, site, messages, out)
		outcome := OutcomeOK
		switch {
		case lastErr == nil:
		case errors.Is(lastErr, ErrMalformedResponse):
			outcome = OutcomeMalformed
		default:
			outcome = OutcomeUnavailable
		}
		if o.observer != nil {
			o.observer(site, outcome, time.Since(start))
		}
		if lastErr == nil {
			return nil
		}

		o.logger.Warn("Oracle call failed",
			"site", site,
			"attempt", attempt,
			"max_attempts", o.maxAttempts,
			"error", lastErr)
		if ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (o *Oracle) attempt(ctx context.Context, site string, messages []chat.ChatMessage, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.llm.Chat(callCtx, messages)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, site, err)
	}
	if resp == nil {
		return fmt.Errorf("%w: %s: empty completion", ErrUnavailable, site)
	}

	final, trace, err := ParseReply(resp.Message)
	if err != nil {
		return Malformed(site, resp.Message, err)
	}
	if err := DecodeFinal(final, out); err != nil {
		return Malformed(site, resp.Message, err)
	}

	o.logger.Debug("Oracle answered",
		"site", site,
		"reasoning_steps", len(trace),
		"model", resp.Model)
	return nil
}
