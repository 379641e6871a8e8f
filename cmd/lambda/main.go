package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"translation-relay/handler"
	"translation-relay/internal/bootstrap"
	"translation-relay/internal/config"
	"translation-relay/internal/language"
	"translation-relay/internal/translation"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	langs, err := language.NewDirectory(cfg.Languages.Supported)
	if err != nil {
		slog.Error("failed to build language directory", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	llm, err := bootstrap.CompletionClient(ctx, cfg.Completion)
	if err != nil {
		slog.Error("failed to create completion client", "err", err)
		os.Exit(1)
	}
	translator, err := translation.NewTranslator(llm, translation.WithModel(cfg.Completion.Model))
	if err != nil {
		slog.Error("failed to create translator", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(translator, langs,
		handler.WithDefaultPair(cfg.Languages.DefaultFrom, cfg.Languages.DefaultTo),
	)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
