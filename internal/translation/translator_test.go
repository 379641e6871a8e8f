package translation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"translation-relay/internal/integrations/completion"
)

type fakeCompleter struct {
	out  string
	err  error
	last completion.Request
}

func (f *fakeCompleter) Complete(_ context.Context, in completion.Request) (string, error) {
	f.last = in
	return f.out, f.err
}

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func newQuietTranslator(t *testing.T, llm Completer, opts ...Option) (*Translator, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	tr, err := NewTranslator(llm, opts...)
	require.NoError(t, err)
	return tr, &buf
}

func TestNewTranslator_NilCompleter(t *testing.T) {
	_, err := NewTranslator(nil)
	require.Error(t, err)
}

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages("chest pain", "en", "ht")
	require.Len(t, msgs, 2)
	require.Equal(t, "system", msgs[0].Role)
	require.Contains(t, msgs[0].Content, "Preserve medical terminology")
	require.Equal(t, "user", msgs[1].Role)
	require.Equal(t, "Translate the following text from English to Haitian Creole:\n\nchest pain", msgs[1].Content)
}

func TestBuildMessages_UnknownCodeFallsBack(t *testing.T) {
	msgs := buildMessages("hi", "xx", "es")
	require.True(t, strings.HasPrefix(msgs[1].Content, "Translate the following text from xx to Spanish:"))
}

func TestNormalizeOutput(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`dolor en el pecho`, "dolor en el pecho"},
		{`"dolor en el pecho"`, "dolor en el pecho"},
		{`'Hola'`, "Hola"},
		{"Translation: Hola", "Hola"},
		{"Translated:   Hola  ", "Hola"},
		{"  \"Hola\"\n", "Hola"},
		{`""`, ""},
		{"Hola, ¿cómo está?", "Hola, ¿cómo está?"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, normalizeOutput(tc.in), "in=%q", tc.in)
	}
}

func TestTranslate_HappyPath(t *testing.T) {
	llm := &fakeCompleter{out: `"dolor en el pecho"`}
	tr, _ := newQuietTranslator(t, llm, WithModel("test-model"))

	out, err := tr.Translate(context.Background(), "chest pain", "en", "es")
	require.NoError(t, err)
	require.Equal(t, "dolor en el pecho", out)
	require.Equal(t, "test-model", llm.last.Model)
	require.InDelta(t, 0.1, llm.last.Temperature, 1e-9)
	require.Equal(t, 512, llm.last.MaxTokens)
	require.Len(t, llm.last.Messages, 2)
}

func TestTranslate_DefaultModel(t *testing.T) {
	llm := &fakeCompleter{out: "Hola"}
	tr, _ := newQuietTranslator(t, llm, WithModel("  "))
	_, err := tr.Translate(context.Background(), "Hello", "en", "es")
	require.NoError(t, err)
	require.Equal(t, DefaultModel, llm.last.Model)
}

func TestTranslate_FailureKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"upstream", fmt.Errorf("wrapped: %w", statusErr(503)), KindUpstream},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", fmt.Errorf("wrapped: %w", timeoutErr{}), KindTimeout},
		{"malformed", fmt.Errorf("%w: no choices", completion.ErrMalformedResponse), KindMalformed},
		{"transport", errors.New("connection refused"), KindTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, logs := newQuietTranslator(t, &fakeCompleter{err: tc.err})
			out, err := tr.Translate(context.Background(), "Hello", "en", "es")
			require.Empty(t, out)
			require.Error(t, err)
			require.Equal(t, tc.want, KindOf(err))
			require.ErrorIs(t, err, tc.err)
			require.Contains(t, logs.String(), "translation failed")
		})
	}
}

func TestTranslate_EmptyOutputIsMalformed(t *testing.T) {
	tr, _ := newQuietTranslator(t, &fakeCompleter{out: `  ""  `})
	_, err := tr.Translate(context.Background(), "Hello", "en", "es")
	require.Equal(t, KindMalformed, KindOf(err))
}

func TestKindOf_Foreign(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(errors.New("x")))
	require.Equal(t, Kind(""), KindOf(nil))
}

func TestError_Message(t *testing.T) {
	e := &Error{Kind: KindUpstream, Reason: "status_500"}
	require.Equal(t, "translation: upstream_error (status_500)", e.Error())
	e.Err = errors.New("boom")
	require.Equal(t, "translation: upstream_error (status_500): boom", e.Error())
}

// ---------------------------------------------------------------------------
// Against a real completion client
// ---------------------------------------------------------------------------

func newCompletionTranslator(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Translator {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := completion.NewClient(
		completion.WithAPIKey("nvapi-test"),
		completion.WithBaseURL(srv.URL),
		completion.WithTimeout(timeout),
	)
	require.NoError(t, err)
	tr, _ := newQuietTranslator(t, c)
	return tr
}

func TestTranslate_Completion_IdentityStub(t *testing.T) {
	tr := newCompletionTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"\"Hello\""}}]}`))
	}, time.Second)

	out, err := tr.Translate(context.Background(), "Hello", "en", "es")
	require.NoError(t, err)
	require.Equal(t, "Hello", out)
}

func TestTranslate_Completion_Non2xx(t *testing.T) {
	tr := newCompletionTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, time.Second)

	_, err := tr.Translate(context.Background(), "Hello", "en", "es")
	require.Equal(t, KindUpstream, KindOf(err))
}

func TestTranslate_Completion_Timeout(t *testing.T) {
	tr := newCompletionTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, 50*time.Millisecond)

	_, err := tr.Translate(context.Background(), "Hello", "en", "es")
	require.Equal(t, KindTimeout, KindOf(err))
}

func TestTranslate_Completion_Malformed(t *testing.T) {
	tr := newCompletionTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}, time.Second)

	_, err := tr.Translate(context.Background(), "Hello", "en", "es")
	require.Equal(t, KindMalformed, KindOf(err))
}
