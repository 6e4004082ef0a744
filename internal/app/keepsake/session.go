package keepsake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/keepsake/internal/audio"
	"github.com/PabloGalante/keepsake/internal/domain"
	"github.com/PabloGalante/keepsake/internal/observability"
	"github.com/PabloGalante/keepsake/internal/retry"
)

// ErrStale is returned by Submit when the session was reset while the
// letter was still being written.
var ErrStale = errors.New("session was reset during generation")

// Snapshot is a copy of the session at one point in time.
type Snapshot struct {
	SessionID  domain.SessionID
	Generation uint64
	State      domain.State
	KeepsakeID domain.KeepsakeID
	Playing    bool
}

// Session drives one person through landing -> input -> generating -> reveal.
//
// generation is bumped on every reset. Background steps capture it when they
// start and their results are dropped if it has changed by the time they
// finish.
type Session struct {
	id      domain.SessionID
	orch    *Orchestrator
	archive domain.KeepsakeStore
	mode    domain.RevealMode
	player  *audio.Player
	baseCtx context.Context
	now     func() time.Time

	// saveMu orders archive writes so the last write carries the newest result.
	saveMu sync.Mutex
	// pending counts submits and background steps that may still write to
	// the archive. Adds happen under mu while the session is open.
	pending sync.WaitGroup

	mu         sync.Mutex
	state      domain.State
	input      domain.MemoryInput
	result     *domain.GenerationResult
	keepsake   *domain.Keepsake
	generation uint64
	cancelBg   context.CancelFunc
	bg         *sync.WaitGroup
	closed     bool
	lastSeen   time.Time
	subs       map[int]chan Snapshot
	nextSub    int
}

func newSession(
	baseCtx context.Context,
	orch *Orchestrator,
	archive domain.KeepsakeStore,
	mode domain.RevealMode,
	out audio.Output,
	now func() time.Time,
) *Session {
	id := domain.SessionID(uuid.NewString())
	log := observability.WithFields("session_id", id)

	return &Session{
		id:      id,
		orch:    orch,
		archive: archive,
		mode:    mode,
		player: audio.NewPlayer(out, audio.DefaultContext{}, func(err error) {
			log.Warn("playback failed", "error", err)
		}),
		baseCtx:  baseCtx,
		now:      now,
		state:    domain.Landing{},
		lastSeen: now(),
		subs:     make(map[int]chan Snapshot),
	}
}

// ID returns the session identifier.
func (s *Session) ID() domain.SessionID { return s.id }

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.snapshotLocked()
}

// Start moves from the landing screen to the form.
func (s *Session) Start() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if _, ok := s.state.(domain.Landing); !ok {
		return s.snapshotLocked(), domain.ErrInvalidTransition
	}
	s.state = domain.Input{}
	s.publishLocked()
	return s.snapshotLocked(), nil
}

// Submit writes the letter and reveals it. In background mode it returns as
// soon as the letter exists; in sequential mode it also waits for image and
// voice. A letter failure moves back to the form and is returned as a
// *domain.UserError.
func (s *Session) Submit(ctx context.Context, in domain.MemoryInput) (Snapshot, error) {
	s.mu.Lock()
	s.touchLocked()
	if s.closed {
		defer s.mu.Unlock()
		return s.snapshotLocked(), domain.ErrSessionNotFound
	}
	if _, ok := s.state.(domain.Input); !ok {
		defer s.mu.Unlock()
		return s.snapshotLocked(), domain.ErrInvalidTransition
	}
	if !in.Complete() {
		defer s.mu.Unlock()
		return s.snapshotLocked(), domain.ErrIncompleteInput
	}
	s.pending.Add(1)
	defer s.pending.Done()
	s.input = in
	s.state = domain.Generating{Input: in}
	token := s.generation
	s.publishLocked()
	s.mu.Unlock()

	ctx = observability.WithSessionID(ctx, string(s.id))
	log := observability.LoggerFromContext(ctx)

	letter, err := s.orch.WriteLetter(ctx, in)

	s.mu.Lock()
	if s.generation != token {
		defer s.mu.Unlock()
		log.Info("letter arrived after reset, dropping it")
		return s.snapshotLocked(), ErrStale
	}
	if err != nil {
		uerr := domain.NewUserError(retry.IsRateLimited(err))
		s.state = domain.Input{Error: uerr}
		s.publishLocked()
		defer s.mu.Unlock()
		return s.snapshotLocked(), uerr
	}

	now := s.now()
	s.result = &domain.GenerationResult{
		Letter:      letter.Text,
		ImagePrompt: letter.ImagePrompt,
		Citations:   letter.Citations,
	}
	s.keepsake = &domain.Keepsake{
		ID:        domain.KeepsakeID(uuid.NewString()),
		SessionID: s.id,
		Input:     in,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.mode == domain.RevealSequential {
		work := s.result.Clone()
		s.mu.Unlock()

		s.orch.RunSequential(ctx, in, letter, &work)

		s.mu.Lock()
		if s.generation != token {
			defer s.mu.Unlock()
			return s.snapshotLocked(), ErrStale
		}
		*s.result = work
		s.keepsake.UpdatedAt = s.now()
		s.state = domain.Reveal{}
		s.publishLocked()
		snap := s.snapshotLocked()
		k, res := s.keepsake, s.result
		s.mu.Unlock()

		s.persist(ctx, k, res)
		log.Info("keepsake revealed", "mode", s.mode, "has_image", work.ImageURL != "", "has_audio", work.HasAudio())
		return snap, nil
	}

	bgCtx, cancel := context.WithCancel(observability.WithSessionID(s.baseCtx, string(s.id)))
	s.cancelBg = cancel
	s.state = domain.Reveal{}
	s.publishLocked()
	snap := s.snapshotLocked()

	s.bg = s.orch.RunBackground(bgCtx, in, letter, func(st step, v string) {
		s.commit(bgCtx, token, st, v)
	})
	steps := s.bg
	s.pending.Add(1)
	go func() {
		steps.Wait()
		s.pending.Done()
	}()
	k, res := s.keepsake, s.result
	s.mu.Unlock()

	s.persist(ctx, k, res)
	log.Info("keepsake revealed", "mode", s.mode)
	return snap, nil
}

// commit applies a background result unless the session moved on.
func (s *Session) commit(ctx context.Context, token uint64, st step, v string) {
	s.mu.Lock()
	if s.generation != token || s.result == nil {
		s.mu.Unlock()
		observability.StalePatches.WithLabelValues(st.name).Inc()
		observability.LoggerFromContext(ctx).Info("dropping stale background result", "step", st.name)
		return
	}
	changed := st.apply(s.result, v)
	k, res := s.keepsake, s.result
	if changed {
		k.UpdatedAt = s.now()
		s.publishLocked()
	}
	s.mu.Unlock()

	if changed {
		s.persist(ctx, k, res)
	}
}

// persist archives ks with res, the objects captured when the change was
// accepted. Reset detaches them from the session but never mutates them.
func (s *Session) persist(ctx context.Context, ks *domain.Keepsake, res *domain.GenerationResult) {
	if s.archive == nil || ks == nil || res == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	k := *ks
	k.Result = res.Clone()
	s.mu.Unlock()

	// the request or background context may already be gone; the archive
	// write should still happen
	ctx = context.WithoutCancel(ctx)
	if err := s.archive.SaveKeepsake(ctx, &k); err != nil {
		observability.LoggerFromContext(ctx).Warn("failed to archive keepsake", "keepsake_id", k.ID, "error", err)
	}
}

// Reset returns to the landing screen from anywhere, stops playback and
// invalidates every background step still running.
func (s *Session) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	s.generation++
	if s.cancelBg != nil {
		s.cancelBg()
		s.cancelBg = nil
	}
	s.player.Stop()
	s.result = nil
	s.keepsake = nil
	s.input = domain.MemoryInput{}
	s.state = domain.Landing{}
	s.publishLocked()
	return s.snapshotLocked()
}

// PlayVoice starts the narration from a freshly decoded buffer, stopping
// whatever was playing.
func (s *Session) PlayVoice() (*audio.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if _, ok := s.state.(domain.Reveal); !ok || s.result == nil {
		return nil, domain.ErrInvalidTransition
	}
	if !s.result.HasAudio() {
		return nil, domain.ErrNoAudio
	}
	buf, err := s.player.Play(s.result.AudioData)
	if err != nil {
		return nil, err
	}
	s.publishLocked()
	return buf, nil
}

// StopVoice stops playback.
func (s *Session) StopVoice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.player.Stop()
	s.publishLocked()
}

// WaitBackground blocks until the most recently started background steps
// are finished, including steps invalidated by a reset.
func (s *Session) WaitBackground() {
	s.mu.Lock()
	wg := s.bg
	s.mu.Unlock()
	if wg != nil {
		wg.Wait()
	}
}

// Subscribe delivers a snapshot now and after every change. Slow readers
// only ever miss intermediate snapshots, never the latest one.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 4)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// close resets the session and ends all subscriptions. Later submits are
// refused, so wait may be called once it returns.
func (s *Session) close() {
	s.Reset()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, c := range s.subs {
		delete(s.subs, id)
		close(c)
	}
}

// wait blocks until every submit and background step has finished,
// including their archive writes.
func (s *Session) wait() {
	s.pending.Wait()
}

func (s *Session) touchLocked() {
	s.lastSeen = s.now()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:  s.id,
		Generation: s.generation,
		State:      s.state,
		Playing:    s.player.Playing(),
	}
	if s.keepsake != nil {
		snap.KeepsakeID = s.keepsake.ID
	}
	if _, ok := s.state.(domain.Reveal); ok && s.result != nil {
		snap.State = domain.Reveal{Input: s.input, Result: s.result.Clone()}
	}
	return snap
}

func (s *Session) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// drop the oldest queued snapshot to make room for this one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
