package domain

import "context"

// LetterWriter turns a memory into a letter.
type LetterWriter interface {
	WriteLetter(ctx context.Context, in MemoryInput) (Letter, error)
}

// Illustrator paints the memory. It returns a data URI.
type Illustrator interface {
	Illustrate(ctx context.Context, in MemoryInput, letter Letter) (string, error)
}

// Narrator reads the letter aloud. It returns base64 PCM16 audio, or "" when
// the model produced no audio.
type Narrator interface {
	Narrate(ctx context.Context, letterText string) (string, error)
}

// Generator bundles the three generation calls.
type Generator interface {
	LetterWriter
	Illustrator
	Narrator
}

// KeepsakeStore persists finished (or partially finished) generations.
type KeepsakeStore interface {
	SaveKeepsake(ctx context.Context, k *Keepsake) error
	GetKeepsake(ctx context.Context, id KeepsakeID) (*Keepsake, error)
	ListKeepsakes(ctx context.Context, limit int) ([]*Keepsake, error)
}
