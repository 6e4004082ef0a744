package audio

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// EncodeWAV writes buf as a 16-bit PCM RIFF/WAVE file.
func EncodeWAV(w io.Writer, buf *Buffer) error {
	channels := buf.NumberOfChannels()
	frames := buf.Length()
	blockAlign := channels * BitDepth / 8
	dataSize := uint32(frames * blockAlign)

	bw := bufio.NewWriter(w)
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36 + dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(channels),
		uint32(buf.SampleRate),
		uint32(buf.SampleRate * blockAlign),
		uint16(blockAlign),
		uint16(BitDepth),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	var sample [2]byte
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(sample[:], uint16(toPCM16(buf.channels[ch][i])))
			if _, err := bw.Write(sample[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func toPCM16(f float32) int16 {
	v := math.Round(float64(f) * pcmScale)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
