package audio

import "math"

const (
	agcTarget  = 0.1
	agcMinGain = 0.5
	agcMaxGain = 8
	agcAttack  = 0.05
	agcFloor   = 1e-4

	gateThreshold   = 0.004
	gateAttenuation = 0.1
)

// downmixInterleaved averages interleaved multi-channel input into a new
// mono slice of frames samples.
func downmixInterleaved(input []float32, channels, frames int) []float32 {
	out := make([]float32, frames)
	if channels <= 1 {
		copy(out, input)
		return out
	}
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += input[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

func rms(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(frame))))
}

// gainControl is a slow software AGC. Gain moves a fraction of the way to
// the level that would put the frame at agcTarget RMS; silence holds it.
type gainControl struct {
	gain float32
}

func newGainControl() *gainControl {
	return &gainControl{gain: 1}
}

func (g *gainControl) apply(frame []float32) {
	level := rms(frame)
	if level > agcFloor {
		desired := min(max(agcTarget/level, agcMinGain), agcMaxGain)
		g.gain += (desired - g.gain) * agcAttack
	}
	for i, s := range frame {
		frame[i] = min(max(s*g.gain, -1), 1)
	}
}

// gateNoise attenuates frames whose level sits under the noise floor.
func gateNoise(frame []float32) {
	if rms(frame) >= gateThreshold {
		return
	}
	for i := range frame {
		frame[i] *= gateAttenuation
	}
}
