package llm

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/PabloGalante/keepsake/internal/domain"
)

// 1x1 warm-beige PNG.
const mockPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAIAAACQd1PeAAAADElEQVR4nGN4cXUnAAUfAnfSrGVGAAAAAElFTkSuQmCC"

// MockGenerator answers instantly without touching the network. Used in
// local mode and in tests.
type MockGenerator struct {
	audio string
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{audio: mockTone(0.5)}
}

func (m *MockGenerator) WriteLetter(_ context.Context, in domain.MemoryInput) (domain.Letter, error) {
	text := fmt.Sprintf(
		"Dear %s,\n\nI still think of you, my %s, whenever I remember %s.\n\nIt stays with me, %s and close.\n\nAlways,",
		in.Name, in.Relationship, in.Detail, in.Mood,
	)
	return domain.Letter{Text: text}, nil
}

func (m *MockGenerator) Illustrate(context.Context, domain.MemoryInput, domain.Letter) (string, error) {
	return "data:image/png;base64," + mockPNG, nil
}

func (m *MockGenerator) Narrate(context.Context, string) (string, error) {
	return m.audio, nil
}

// mockTone is a soft 220 Hz sine as base64 PCM16 at 24 kHz.
func mockTone(seconds float64) string {
	const sampleRate = 24000
	n := int(seconds * sampleRate)
	raw := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := 0.2 * math.Sin(2*math.Pi*220*float64(i)/sampleRate)
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return base64.StdEncoding.EncodeToString(raw)
}
