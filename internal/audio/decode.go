// Package audio turns the voice payload into something playable.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	SampleRate = 24000
	Channels   = 1
	BitDepth   = 16

	pcmScale = 32768.0
)

// Buffer is a decoded, non-interleaved float buffer.
type Buffer struct {
	SampleRate int
	channels   [][]float32
}

// NumberOfChannels returns the channel count.
func (b *Buffer) NumberOfChannels() int { return len(b.channels) }

// Length returns the number of frames.
func (b *Buffer) Length() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Duration is Length at SampleRate.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(b.Length()) * time.Second / time.Duration(b.SampleRate)
}

// ChannelData returns the samples of channel ch. The slice is owned by the buffer.
func (b *Buffer) ChannelData(ch int) []float32 {
	return b.channels[ch]
}

// Context allocates sample buffers.
type Context interface {
	CreateBuffer(channels, frames, sampleRate int) *Buffer
}

// DefaultContext allocates plain in-memory buffers.
type DefaultContext struct{}

func (DefaultContext) CreateBuffer(channels, frames, sampleRate int) *Buffer {
	b := &Buffer{SampleRate: sampleRate, channels: make([][]float32, channels)}
	for i := range b.channels {
		b.channels[i] = make([]float32, frames)
	}
	return b
}

// Decode reads base64 little-endian PCM16 mono audio at 24 kHz into a new
// buffer allocated from actx. A trailing odd byte is ignored.
func Decode(data string, actx Context) (*Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode audio base64: %w", err)
	}
	if actx == nil {
		actx = DefaultContext{}
	}

	frames := len(raw) / 2
	buf := actx.CreateBuffer(Channels, frames, SampleRate)
	samples := buf.ChannelData(0)
	for i := 0; i < frames; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float32(s) / pcmScale
	}
	return buf, nil
}
