package keepsake

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/keepsake/internal/audio"
	"github.com/PabloGalante/keepsake/internal/domain"
	"github.com/PabloGalante/keepsake/internal/observability"
)

type Options struct {
	Mode domain.RevealMode
	// SessionTTL evicts sessions idle for longer. Zero keeps them forever.
	SessionTTL time.Duration
	// Output receives played voice buffers. Defaults to audio.ClockOutput.
	Output audio.Output
}

// Service owns every live session.
type Service struct {
	orch    *Orchestrator
	archive domain.KeepsakeStore
	opts    Options
	now     func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
}

// NewService builds the service. archive may be nil.
func NewService(gen domain.Generator, archive domain.KeepsakeStore, opts Options) *Service {
	if opts.Mode == "" {
		opts.Mode = domain.RevealBackground
	}
	if opts.Output == nil {
		opts.Output = audio.ClockOutput{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		orch:     NewOrchestrator(gen),
		archive:  archive,
		opts:     opts,
		now:      time.Now,
		baseCtx:  ctx,
		cancel:   cancel,
		sessions: make(map[domain.SessionID]*Session),
	}
}

// NewSession creates a session on the landing screen.
func (s *Service) NewSession(ctx context.Context) *Session {
	sess := newSession(s.baseCtx, s.orch, s.archive, s.opts.Mode, s.opts.Output, s.now)

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	observability.SessionsActive.Set(float64(count))
	observability.LoggerFromContext(ctx).Info("session created", "session_id", sess.ID(), "mode", s.opts.Mode)
	return sess
}

// Session looks a session up.
func (s *Service) Session(id domain.SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) Start(id domain.SessionID) (Snapshot, error) {
	sess, err := s.Session(id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Start()
}

func (s *Service) Submit(ctx context.Context, id domain.SessionID, in domain.MemoryInput) (Snapshot, error) {
	sess, err := s.Session(id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Submit(ctx, in)
}

func (s *Service) Reset(id domain.SessionID) (Snapshot, error) {
	sess, err := s.Session(id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Reset(), nil
}

func (s *Service) Snapshot(id domain.SessionID) (Snapshot, error) {
	sess, err := s.Session(id)
	if err != nil {
		return Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

func (s *Service) PlayVoice(id domain.SessionID) (*audio.Buffer, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	return sess.PlayVoice()
}

func (s *Service) StopVoice(id domain.SessionID) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	sess.StopVoice()
	return nil
}

// Sweep evicts sessions idle since before now-SessionTTL and returns how
// many were removed.
func (s *Service) Sweep(now time.Time) int {
	if s.opts.SessionTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.opts.SessionTTL)

	var expired []*Session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	observability.SessionsActive.Set(float64(count))
	if len(expired) > 0 {
		observability.Logger().Info("evicted idle sessions", "count", len(expired))
	}
	return len(expired)
}

// RunJanitor sweeps every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, every time.Duration) {
	if s.opts.SessionTTL <= 0 || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Sweep(now)
		}
	}
}

// closeTimeout bounds how long Close waits for in-flight archive writes.
var closeTimeout = 5 * time.Second

// Close stops every background step, drops all sessions and waits, up to
// closeTimeout, for writes already accepted to reach the archive. The
// archive can be closed once it returns.
func (s *Service) Close() {
	s.cancel()

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[domain.SessionID]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	observability.SessionsActive.Set(0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, sess := range sessions {
			sess.wait()
		}
	}()

	t := time.NewTimer(closeTimeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		observability.Logger().Warn("gave up waiting for background work", "timeout", closeTimeout)
	}
}
