package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

var ErrNothingToPlay = errors.New("audio: nothing to play")

// Output consumes a decoded buffer. Play should return early when ctx is done.
type Output interface {
	Play(ctx context.Context, buf *Buffer) error
}

type source struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Player plays one source at a time. Each Play decodes a fresh buffer and
// stops whatever was playing before.
type Player struct {
	mu      sync.Mutex
	actx    Context
	out     Output
	current *source
	onError func(error)
}

// NewPlayer builds a player. onError may be nil.
func NewPlayer(out Output, actx Context, onError func(error)) *Player {
	if actx == nil {
		actx = DefaultContext{}
	}
	return &Player{actx: actx, out: out, onError: onError}
}

// Play decodes data and starts it on the output.
func (p *Player) Play(data string) (*Buffer, error) {
	if data == "" {
		return nil, ErrNothingToPlay
	}
	buf, err := Decode(data, p.actx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	src := &source{cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	p.stopLocked()
	p.current = src
	p.mu.Unlock()

	go func() {
		defer close(src.done)
		err := p.out.Play(ctx, buf)
		if err != nil && !errors.Is(err, context.Canceled) && p.onError != nil {
			p.onError(err)
		}

		p.mu.Lock()
		if p.current == src {
			p.current = nil
		}
		p.mu.Unlock()
		cancel()
	}()

	return buf, nil
}

// Stop halts the current source, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Playing reports whether a source is active.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

func (p *Player) stopLocked() {
	if p.current == nil {
		return
	}
	p.current.cancel()
	p.current = nil
}

// ClockOutput "plays" by waiting for the buffer's duration. The HTTP service
// uses it to track playback state while the browser does the actual playing.
type ClockOutput struct{}

func (ClockOutput) Play(ctx context.Context, buf *Buffer) error {
	t := time.NewTimer(buf.Duration())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FileOutput writes every played buffer to Path as a WAV file.
type FileOutput struct {
	Path string
}

func (o FileOutput) Play(_ context.Context, buf *Buffer) error {
	f, err := os.Create(o.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", o.Path, err)
	}
	if err := EncodeWAV(f, buf); err != nil {
		f.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	return f.Close()
}
