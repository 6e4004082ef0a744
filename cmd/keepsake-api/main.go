package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/PabloGalante/keepsake/internal/bootstrap"
	"github.com/PabloGalante/keepsake/internal/config"
	"github.com/PabloGalante/keepsake/internal/domain"
	"github.com/PabloGalante/keepsake/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := observability.Logger()

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredential) {
			log.Error("missing credential, set KEEPSAKE_API_KEY or KEEPSAKE_USE_MOCK_LLM=true")
		} else {
			log.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	if err := bootstrap.Serve(ctx, cfg); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
