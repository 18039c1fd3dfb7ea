// Package assistant relays free-text prompts to a chat-completion model.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"budget/internal/log"
)

var (
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrUpstream wraps every failure of the completion backend.
	ErrUpstream = errors.New("ai request failed")
	// ErrNotConfigured is returned when no API key was supplied.
	ErrNotConfigured = errors.New("ai assistant not configured")
)

// Completer sends one user message and returns the first choice's text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Proxy validates prompts and forwards them to a Completer. It makes a
// single attempt per call.
type Proxy struct {
	completer Completer
	logger    *log.Logger
}

func NewProxy(c Completer, logger *log.Logger) *Proxy {
	if logger == nil {
		logger = log.Discard()
	}
	return &Proxy{completer: c, logger: logger.WithComponent(log.ComponentAssistant)}
}

// Ask rejects blank prompts before any upstream call and returns the reply
// verbatim.
func (p *Proxy) Ask(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if p.completer == nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, ErrNotConfigured)
	}

	start := time.Now()
	reply, err := p.completer.Complete(ctx, prompt)
	fields := log.NewFields().WithOperation(log.OpAsk)
	fields[log.FieldPromptLength] = len(prompt)
	fields[log.FieldDuration] = time.Since(start).Milliseconds()
	if err != nil {
		p.logger.ErrorContext(ctx, "AI request failed", fields.WithError(err, log.ErrorTypeUpstream).ToSlice()...)
		if errors.Is(err, ErrUpstream) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	p.logger.InfoContext(ctx, "AI request completed", fields.ToSlice()...)
	return reply, nil
}
