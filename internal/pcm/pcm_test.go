package pcm

import (
	"encoding/base64"
	"errors"
	"math"
	"testing"
)

func TestRoundTripWithinQuantizationError(t *testing.T) {
	frame := []float32{0, 0.5, -0.5, 1, -1, 0.25, -0.999, 0.123456, 1e-6}

	data, err := DecodeChunkToBytes(Encode(frame))
	if err != nil {
		t.Fatalf("DecodeChunkToBytes: %v", err)
	}
	buf, err := DecodeToAudioBuffer(data, 16000, 1)
	if err != nil {
		t.Fatalf("DecodeToAudioBuffer: %v", err)
	}

	if buf.Length() != len(frame) {
		t.Fatalf("expected %d samples, got %d", len(frame), buf.Length())
	}
	for i, want := range frame {
		got := buf.Channels[0][i]
		if diff := math.Abs(float64(got - want)); diff > 1.0/32768 {
			t.Errorf("sample %d: got %f, want %f (diff %g)", i, got, want, diff)
		}
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		sample float32
		want   int16
	}{
		{"above one", 1.5, math.MaxInt16},
		{"exactly one", 1, math.MaxInt16},
		{"below minus one", -2, math.MinInt16},
		{"minus one", -1, math.MinInt16},
		{"zero", 0, 0},
		{"half", 0.5, 16384},
		{"NaN", float32(math.NaN()), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := base64.StdEncoding.DecodeString(Encode([]float32{tt.sample}))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := int16(uint16(raw[0]) | uint16(raw[1])<<8)
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestZeroFrameScenario(t *testing.T) {
	chunk := Encode(make([]float32, 256))

	data, err := DecodeChunkToBytes(chunk)
	if err != nil {
		t.Fatalf("DecodeChunkToBytes: %v", err)
	}
	if len(data) != 512 {
		t.Fatalf("expected 512 bytes, got %d", len(data))
	}
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d is %d, want 0", i, b)
		}
	}

	buf, err := DecodeToAudioBuffer(data, 24000, 1)
	if err != nil {
		t.Fatalf("DecodeToAudioBuffer: %v", err)
	}
	if buf.NumberOfChannels() != 1 || buf.Length() != 256 {
		t.Fatalf("expected 1x256 buffer, got %dx%d", buf.NumberOfChannels(), buf.Length())
	}
	for i, s := range buf.Channels[0] {
		if s != 0 {
			t.Fatalf("sample %d is %f, want 0", i, s)
		}
	}
}

func TestDecodeChunkToBytesRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		want  error
	}{
		{"not base64", "%%%not-base64", ErrMalformedChunk},
		{"url alphabet", "-_-_", ErrMalformedChunk},
		{"odd length", base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeChunkToBytes(tt.chunk)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeToAudioBufferDeinterleaves(t *testing.T) {
	// Three stereo frames plus one dangling sample.
	samples := []int16{16384, -16384, 8192, -8192, 0, 32767, 100}
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(uint16(s) >> 8)
	}

	buf, err := DecodeToAudioBuffer(data, 24000, 2)
	if err != nil {
		t.Fatalf("DecodeToAudioBuffer: %v", err)
	}
	if buf.Length() != 3 {
		t.Fatalf("expected 3 frames, got %d", buf.Length())
	}

	left := []float32{0.5, 0.25, 0}
	right := []float32{-0.5, -0.25, 32767.0 / 32768}
	for i := range left {
		if buf.Channels[0][i] != left[i] {
			t.Errorf("left %d: got %f, want %f", i, buf.Channels[0][i], left[i])
		}
		if buf.Channels[1][i] != right[i] {
			t.Errorf("right %d: got %f, want %f", i, buf.Channels[1][i], right[i])
		}
	}
}

func TestDecodeToAudioBufferErrors(t *testing.T) {
	if _, err := DecodeToAudioBuffer([]byte{1, 2, 3}, 24000, 1); !errors.Is(err, ErrDecode) {
		t.Errorf("odd length: expected ErrDecode, got %v", err)
	}
	if _, err := DecodeToAudioBuffer([]byte{1, 2}, 0, 1); !errors.Is(err, ErrDecode) {
		t.Errorf("zero rate: expected ErrDecode, got %v", err)
	}
	if _, err := DecodeToAudioBuffer([]byte{1, 2}, 24000, 0); !errors.Is(err, ErrDecode) {
		t.Errorf("zero channels: expected ErrDecode, got %v", err)
	}
}

func TestBufferDuration(t *testing.T) {
	buf := &Buffer{SampleRate: 24000, Channels: [][]float32{make([]float32, 12000)}}
	if buf.Duration() != 0.5 {
		t.Errorf("expected 0.5s, got %f", buf.Duration())
	}
	empty := &Buffer{SampleRate: 24000}
	if empty.Duration() != 0 || empty.Length() != 0 {
		t.Errorf("expected empty buffer to have zero length and duration")
	}
}

func TestMimeTypeAndParseRate(t *testing.T) {
	if got := MimeType(16000); got != "audio/pcm;rate=16000" {
		t.Errorf("MimeType: got %q", got)
	}

	tests := []struct {
		mime string
		want int
	}{
		{"audio/pcm;rate=24000", 24000},
		{"audio/pcm; rate=16000", 16000},
		{"audio/pcm", 22050},
		{"audio/pcm;rate=abc", 22050},
		{"", 22050},
	}
	for _, tt := range tests {
		if got := ParseRate(tt.mime, 22050); got != tt.want {
			t.Errorf("ParseRate(%q) = %d, want %d", tt.mime, got, tt.want)
		}
	}
}
