package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// SampleRate is the rate of the PCM frames devices stream to the service.
const SampleRate = 16000

// EncodeWAV wraps mono 16-bit PCM samples in a RIFF/WAVE container.
func EncodeWAV(pcm []int16, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	dataLen := len(pcm) * 2
	var buf bytes.Buffer
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*bitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	binary.Write(&buf, binary.LittleEndian, pcm)
	return buf.Bytes()
}

var ErrOddFrame = errors.New("pcm frame has an odd number of bytes")

// DecodePCM reads little-endian 16-bit samples from a binary frame.
func DecodePCM(frame []byte) ([]int16, error) {
	if len(frame)%2 != 0 {
		return nil, ErrOddFrame
	}
	pcm := make([]int16, len(frame)/2)
	if err := binary.Read(bytes.NewReader(frame), binary.LittleEndian, pcm); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return pcm, nil
}

// EncodePCM is the inverse of DecodePCM.
func EncodePCM(pcm []int16) []byte {
	var buf bytes.Buffer
	buf.Grow(len(pcm) * 2)
	binary.Write(&buf, binary.LittleEndian, pcm)
	return buf.Bytes()
}

// rms is the root mean square amplitude of a frame.
func rms(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
