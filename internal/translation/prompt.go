package translation

import (
	"fmt"
	"strings"

	"translation-relay/internal/domain"
	"translation-relay/internal/language"
)

const systemPrompt = "You are a professional medical interpreter providing accurate, " +
	"natural-sounding translations. Preserve medical terminology. " +
	"Output ONLY the translated text, nothing else: no quotes, no labels, " +
	"no explanations."

// Stripped in order, each at most once, mirroring how models tend to wrap output.
var (
	leadingTokens  = []string{`"`, `'`, "Translation:", "Translated:"}
	trailingTokens = []string{`"`, `'`}
)

func buildMessages(text, from, to string) []domain.ChatMessage {
	user := fmt.Sprintf("Translate the following text from %s to %s:\n\n%s",
		language.Name(from), language.Name(to), text)
	return []domain.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}
}

func normalizeOutput(raw string) string {
	out := strings.TrimSpace(raw)
	for _, p := range leadingTokens {
		out = strings.TrimPrefix(out, p)
	}
	for _, s := range trailingTokens {
		out = strings.TrimSuffix(out, s)
	}
	return strings.TrimSpace(out)
}
