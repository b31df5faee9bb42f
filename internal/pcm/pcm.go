// Package pcm converts between float audio samples and the base64 PCM chunks
// exchanged with the live session.
//
// Outbound frames are 16-bit signed little-endian mono PCM. Inbound chunks are
// interleaved 16-bit PCM at whatever rate and channel count the remote
// declares; they decode into planar float buffers tagged with that rate.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const scale = 32768

var (
	// ErrMalformedChunk is returned when a chunk is not valid base64.
	ErrMalformedChunk = errors.New("pcm: malformed chunk")

	// ErrDecode is returned when decoded bytes violate the 16-bit PCM contract.
	ErrDecode = errors.New("pcm: decode error")
)

// Blob is an encoded chunk together with the mime type the transport expects.
type Blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// MimeType returns the raw PCM mime type for the given sample rate,
// e.g. "audio/pcm;rate=16000".
func MimeType(rate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(rate)
}

// ParseRate extracts the rate parameter from a PCM mime type. It returns
// fallback when the parameter is missing or invalid.
func ParseRate(mimeType string, fallback int) int {
	for _, param := range strings.Split(mimeType, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// Encode quantizes samples to 16-bit little-endian PCM and base64 encodes the
// result. Samples outside [-1, 1] are clamped.
func Encode(frame []float32) string {
	buf := make([]byte, len(frame)*2)
	for i, s := range frame {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(quantize(s)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// NewBlob encodes frame and tags it with the PCM mime type for rate.
func NewBlob(frame []float32, rate int) Blob {
	return Blob{Data: Encode(frame), MimeType: MimeType(rate)}
}

func quantize(s float32) int16 {
	v := float64(s) * scale
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// DecodeChunkToBytes reverses the base64 transform applied by Encode. The
// result must hold whole 16-bit samples.
func DecodeChunkToBytes(chunk string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(chunk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: odd byte count %d", ErrDecode, len(data))
	}
	return data, nil
}

// DecodeToAudioBuffer interprets data as interleaved 16-bit little-endian
// samples and splits them into channels planar float channels. Trailing
// samples that do not fill a whole frame are discarded.
func DecodeToAudioBuffer(data []byte, sampleRate, channels int) (*Buffer, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: odd byte count %d", ErrDecode, len(data))
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: invalid format %dHz/%dch", ErrDecode, sampleRate, channels)
	}

	total := len(data) / 2
	frames := total / channels
	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for c := range buf.Channels {
		buf.Channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames*channels; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		buf.Channels[i%channels][i/channels] = float32(s) / scale
	}
	return buf, nil
}

// Decode runs DecodeChunkToBytes followed by DecodeToAudioBuffer.
func Decode(chunk string, sampleRate, channels int) (*Buffer, error) {
	data, err := DecodeChunkToBytes(chunk)
	if err != nil {
		return nil, err
	}
	return DecodeToAudioBuffer(data, sampleRate, channels)
}
