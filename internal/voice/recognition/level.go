package recognition

import "math"

// noiseRise is how fast the noise floor drifts up towards louder input.
const noiseRise = 0.01

// LevelMeter computes the RMS level of PCM frames and tracks the noise floor
// as a slowly rising minimum.
type LevelMeter struct {
	level  float64
	floor  float64
	primed bool
}

// Feed consumes one frame of signed 16-bit PCM and returns the level and the
// noise floor, both in [0,1].
func (m *LevelMeter) Feed(pcm []int16) (level, floor float64) {
	m.level = RMS(pcm)
	switch {
	case !m.primed:
		m.floor = m.level
		m.primed = true
	case m.level < m.floor:
		m.floor = m.level
	default:
		m.floor += (m.level - m.floor) * noiseRise
	}
	return m.level, m.floor
}

func (m *LevelMeter) Reset() {
	*m = LevelMeter{}
}

// RMS returns the root mean square of pcm scaled to [0,1].
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Min(1, math.Sqrt(sum/float64(len(pcm))))
}
