package keepsake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PabloGalante/keepsake/internal/domain"
	"github.com/PabloGalante/keepsake/internal/observability"
)

// step is one generation call that follows the letter.
type step struct {
	name  string
	run   func(ctx context.Context, in domain.MemoryInput, letter domain.Letter) (string, error)
	apply func(r *domain.GenerationResult, v string) bool
}

// Orchestrator runs the letter call and then the image and voice steps.
// The letter always finishes before any step starts.
type Orchestrator struct {
	gen   domain.Generator
	steps []step
}

// NewOrchestrator constructs the flow letter -> (image, voice).
func NewOrchestrator(gen domain.Generator) *Orchestrator {
	return &Orchestrator{
		gen: gen,
		steps: []step{
			{
				name: observability.OpImage,
				run:  gen.Illustrate,
				apply: func(r *domain.GenerationResult, v string) bool {
					r.ImageURL = v
					return true
				},
			},
			{
				name: observability.OpVoice,
				run: func(ctx context.Context, _ domain.MemoryInput, letter domain.Letter) (string, error) {
					return gen.Narrate(ctx, letter.Text)
				},
				apply: func(r *domain.GenerationResult, v string) bool {
					if v == "" {
						return false
					}
					r.AudioData = v
					return true
				},
			},
		},
	}
}

// WriteLetter runs the only call whose failure blocks the experience.
func (o *Orchestrator) WriteLetter(ctx context.Context, in domain.MemoryInput) (domain.Letter, error) {
	log := observability.LoggerFromContext(ctx)
	start := time.Now()
	log.Info("letter run start", "mood", in.Mood)

	letter, err := o.gen.WriteLetter(ctx, in)
	if err != nil {
		log.Error("letter failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return domain.Letter{}, err
	}

	log.Info("letter run end", "elapsed_ms", time.Since(start).Milliseconds())
	return letter, nil
}

// RunSequential runs the steps one after the other and patches result
// directly. Step failures are logged and leave their field empty.
func (o *Orchestrator) RunSequential(ctx context.Context, in domain.MemoryInput, letter domain.Letter, result *domain.GenerationResult) {
	for _, st := range o.steps {
		v, ok := o.runStep(ctx, st, in, letter)
		if ok {
			st.apply(result, v)
		}
	}
}

// RunBackground starts every step in its own goroutine. commit is called
// with each successful value and decides whether to keep it. The returned
// WaitGroup is done when all steps have finished.
func (o *Orchestrator) RunBackground(
	ctx context.Context,
	in domain.MemoryInput,
	letter domain.Letter,
	commit func(st step, v string),
) *sync.WaitGroup {
	var wg sync.WaitGroup
	for _, st := range o.steps {
		wg.Add(1)
		go func(st step) {
			defer wg.Done()
			if v, ok := o.runStep(ctx, st, in, letter); ok {
				commit(st, v)
			}
		}(st)
	}
	return &wg
}

func (o *Orchestrator) runStep(ctx context.Context, st step, in domain.MemoryInput, letter domain.Letter) (string, bool) {
	log := observability.LoggerFromContext(ctx).With("step", st.name)
	start := time.Now()
	log.Info("step run start")

	v, err := st.run(ctx, in, letter)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("step cancelled", "elapsed_ms", elapsed)
		} else {
			log.Warn("step failed, continuing without it", "error", err, "elapsed_ms", elapsed)
		}
		return "", false
	}

	log.Info("step run end", "elapsed_ms", elapsed, "empty", v == "")
	return v, true
}
