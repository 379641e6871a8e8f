// Package handler serves one-shot translations and liveness behind API
// Gateway for the Lambda deployment.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"translation-relay/internal/server"
	"translation-relay/internal/translation"
)

const (
	correlationHeader = "X-Correlation-Id"
	defaultMaxTextLen = 2000
)

type ErrorCode string

const (
	ErrorInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrorUnsupportedLanguage ErrorCode = "UNSUPPORTED_LANGUAGE"
	ErrorUpstream            ErrorCode = "UPSTREAM_ERROR"
	ErrorTimeout             ErrorCode = "TIMEOUT"
	ErrorNotFound            ErrorCode = "NOT_FOUND"
	ErrorInternal            ErrorCode = "INTERNAL_ERROR"
)

type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

type LanguageValidator interface {
	Validate(codes ...string) error
}

type translateRequest struct {
	Text string `json:"text"`
	From string `json:"from"`
	To   string `json:"to"`
}

type translateResponse struct {
	Original string `json:"original"`
	Text     string `json:"text"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type Handler struct {
	translator  Translator
	languages   LanguageValidator
	defaultFrom string
	defaultTo   string
	maxTextLen  int
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

type Option func(*Handler)

func WithDefaultPair(from, to string) Option {
	return func(h *Handler) {
		h.defaultFrom, h.defaultTo = from, to
	}
}

func WithMaxTextLength(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxTextLen = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(tr Translator, langs LanguageValidator, opts ...Option) (*Handler, error) {
	if tr == nil {
		return nil, errors.New("handler: translator must not be nil")
	}
	if langs == nil {
		return nil, errors.New("handler: language validator must not be nil")
	}
	h := &Handler{
		translator:  tr,
		languages:   langs,
		defaultFrom: "en",
		defaultTo:   "es",
		maxTextLen:  defaultMaxTextLen,
		logger:      slog.Default(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle routes an API Gateway proxy request. Errors are always reported in
// the response; the returned error is reserved for Lambda runtime failures.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = h.newID()
	}
	logger := h.logger.With("correlation_id", correlationID)

	switch {
	case req.HTTPMethod == http.MethodGet && req.Path == "/health":
		return respond(http.StatusOK, server.NewHealth(h.now()), correlationID), nil
	case req.HTTPMethod == http.MethodPost && req.Path == "/translate":
		return h.translate(ctx, logger, req, correlationID), nil
	default:
		return respond(http.StatusNotFound, errorResponse{Error: string(ErrorNotFound)}, correlationID), nil
	}
}

func (h *Handler) translate(ctx context.Context, logger *slog.Logger, req events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	body := req.Body
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return respondError(http.StatusBadRequest, ErrorInvalidInput, "body is not valid base64", correlationID)
		}
		body = string(raw)
	}

	var in translateRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return respondError(http.StatusBadRequest, ErrorInvalidInput, "body must be a JSON object", correlationID)
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return respondError(http.StatusBadRequest, ErrorInvalidInput, "text is required", correlationID)
	}
	if len([]rune(text)) > h.maxTextLen {
		return respondError(http.StatusBadRequest, ErrorInvalidInput, "text is too long", correlationID)
	}
	from := orDefault(in.From, h.defaultFrom)
	to := orDefault(in.To, h.defaultTo)
	if err := h.languages.Validate(from, to); err != nil {
		return respondError(http.StatusBadRequest, ErrorUnsupportedLanguage, err.Error(), correlationID)
	}

	out, err := h.translator.Translate(ctx, text, from, to)
	if err != nil {
		status, code := statusForError(err)
		logger.Error("translate request failed", "code", code, "err", err)
		return respondError(status, code, "", correlationID)
	}
	return respond(http.StatusOK, translateResponse{Original: text, Text: out}, correlationID)
}

func statusForError(err error) (int, ErrorCode) {
	switch translation.KindOf(err) {
	case translation.KindTimeout:
		return http.StatusGatewayTimeout, ErrorTimeout
	case translation.KindUpstream, translation.KindMalformed, translation.KindTransport:
		return http.StatusBadGateway, ErrorUpstream
	default:
		return http.StatusInternalServerError, ErrorInternal
	}
}

func respondError(status int, code ErrorCode, msg, correlationID string) events.APIGatewayProxyResponse {
	return respond(status, errorResponse{Error: string(code), Message: msg}, correlationID)
}

func respond(status int, v any, correlationID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}
}

// headerValue looks a header up case-insensitively; API Gateway preserves the
// client's casing.
func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
