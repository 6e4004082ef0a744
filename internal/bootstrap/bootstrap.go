// Package bootstrap builds the generator, the archive and the HTTP service
// from a Config. Both binaries share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpadapter "github.com/PabloGalante/keepsake/internal/adapters/http"
	"github.com/PabloGalante/keepsake/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/keepsake/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/keepsake/internal/adapters/storage/memory"
	sqlitestore "github.com/PabloGalante/keepsake/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/keepsake/internal/app/archive"
	"github.com/PabloGalante/keepsake/internal/app/keepsake"
	"github.com/PabloGalante/keepsake/internal/config"
	"github.com/PabloGalante/keepsake/internal/domain"
	"github.com/PabloGalante/keepsake/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// NewGenerator chooses between the mock and Gemini.
func NewGenerator(ctx context.Context, cfg *config.Config) (domain.Generator, error) {
	log := observability.Logger()

	if cfg.UseMockLLM {
		log.Info("using mock generator")
		return llm.NewMockGenerator(), nil
	}

	log.Info("using gemini generator",
		"letter_model", cfg.LetterModel,
		"image_model", cfg.ImageModel,
		"voice_model", cfg.VoiceModel,
		"format", cfg.Format(),
		"grounding", cfg.Grounding,
	)
	gen, err := llm.NewGeminiClient(ctx, cfg.APIKey, llm.GeminiOptions{
		LetterModel: cfg.LetterModel,
		ImageModel:  cfg.ImageModel,
		VoiceModel:  cfg.VoiceModel,
		VoiceName:   cfg.VoiceName,
		AspectRatio: cfg.ImageAspectRatio,
		Format:      cfg.Format(),
		Grounding:   cfg.Grounding,
		LetterRetry: cfg.LetterRetry().Policy(),
		ImageRetry:  cfg.ImageRetry().Policy(),
		VoiceRetry:  cfg.VoiceRetry().Policy(),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing gemini client: %w", err)
	}
	return gen, nil
}

// OpenArchive opens the configured keepsake store. close releases it.
func OpenArchive(ctx context.Context, cfg *config.Config) (domain.KeepsakeStore, func() error, error) {
	log := observability.Logger()

	switch cfg.Storage() {
	case config.StorageFirestore:
		log.Info("using firestore archive", "project", cfg.GCPProjectID)
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing firestore store: %w", err)
		}
		return fs, fs.Close, nil

	case config.StorageSQLite:
		log.Info("using sqlite archive", "path", cfg.SQLitePath)
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing sqlite store: %w", err)
		}
		return db, db.Close, nil

	default:
		log.Info("using in-memory archive")
		return memstore.NewKeepsakeStore(), func() error { return nil }, nil
	}
}

// Serve runs the HTTP service until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, cfg *config.Config) error {
	log := observability.Logger()

	gen, err := NewGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	store, closeStore, err := OpenArchive(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("closing archive failed", "error", err)
		}
	}()

	svc := keepsake.NewService(gen, store, keepsake.Options{
		Mode:       cfg.Reveal(),
		SessionTTL: cfg.SessionTTL,
	})
	// runs before closeStore and waits for pending archive writes
	defer svc.Close()
	go svc.RunJanitor(ctx, janitorInterval(cfg.SessionTTL))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpadapter.NewServer(svc, archive.NewService(store)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("keepsake API listening", "addr", srv.Addr, "reveal_mode", cfg.Reveal())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// janitorInterval sweeps a few times per TTL, but not more than once a minute.
func janitorInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	every := ttl / 4
	if every < time.Minute {
		every = time.Minute
	}
	return every
}
