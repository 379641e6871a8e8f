// Package translation turns a piece of text into its translation through a
// chat completion endpoint.
package translation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"translation-relay/internal/integrations/completion"
)

const (
	DefaultModel       = "meta/llama-3.3-70b-instruct"
	defaultTemperature = 0.1
	defaultMaxTokens   = 512
	logPreviewLen      = 60
)

// Completer issues a single chat completion request.
type Completer interface {
	Complete(ctx context.Context, in completion.Request) (string, error)
}

// Translator is stateless apart from its Completer and may be shared by any
// number of connections.
type Translator struct {
	llm         Completer
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

type Option func(*Translator)

func WithModel(model string) Option {
	return func(t *Translator) {
		if m := strings.TrimSpace(model); m != "" {
			t.model = m
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) {
		if l != nil {
			t.logger = l
		}
	}
}

func NewTranslator(llm Completer, opts ...Option) (*Translator, error) {
	if llm == nil {
		return nil, errors.New("translation: completer must not be nil")
	}
	t := &Translator{
		llm:         llm,
		model:       DefaultModel,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Translate returns the translated text or a *Error. The caller is expected to
// have dropped empty input already. Failures are logged here and never
// retried.
func (t *Translator) Translate(ctx context.Context, text, from, to string) (string, error) {
	raw, err := t.llm.Complete(ctx, completion.Request{
		Model:       t.model,
		Messages:    buildMessages(text, from, to),
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
	})
	if err != nil {
		terr := classify(err)
		t.logger.Error("translation failed",
			"kind", terr.Kind,
			"reason", terr.Reason,
			"from", from,
			"to", to,
			"preview", preview(text),
			"err", err,
		)
		return "", terr
	}

	out := normalizeOutput(raw)
	if out == "" {
		terr := &Error{Kind: KindMalformed, Reason: "empty_translation"}
		t.logger.Error("translation failed", "kind", terr.Kind, "reason", terr.Reason, "from", from, "to", to)
		return "", terr
	}
	return out, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= logPreviewLen {
		return s
	}
	return string(r[:logPreviewLen])
}
