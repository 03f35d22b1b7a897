package audio

import "math"

// Detector scores one frame with a speech probability in [0, 1].
// Implementations keep per-stream state; Reset clears it between
// recordings.
type Detector interface {
	Detect(frame []float32) float64
	Reset()
}

// EnergyConfig holds energy detector tuning.
type EnergyConfig struct {
	Gain            float64 `json:"gain"`             // Maps RMS energy into probability
	SmoothingFrames int     `json:"smoothing_frames"` // Frames averaged before scoring
}

// DefaultEnergyConfig returns the standard tuning: normal speech
// (RMS around 0.05-0.2) lands above a 0.5 threshold, keyboard noise
// and room tone below it.
func DefaultEnergyConfig() EnergyConfig {
	return EnergyConfig{
		Gain:            10,
		SmoothingFrames: 5,
	}
}

// EnergyDetector scores frames by smoothed RMS energy. It is the
// zero-dependency fallback detector; anything model-based plugs in
// through the Detector interface.
type EnergyDetector struct {
	config  EnergyConfig
	history []float64
	index   int
	filled  int
}

// NewEnergyDetector creates an energy detector.
func NewEnergyDetector(config EnergyConfig) *EnergyDetector {
	if config.Gain <= 0 {
		config.Gain = DefaultEnergyConfig().Gain
	}
	if config.SmoothingFrames <= 0 {
		config.SmoothingFrames = DefaultEnergyConfig().SmoothingFrames
	}
	return &EnergyDetector{
		config:  config,
		history: make([]float64, config.SmoothingFrames),
	}
}

// Detect returns the smoothed speech probability for one frame.
func (d *EnergyDetector) Detect(frame []float32) float64 {
	d.history[d.index] = rms(frame)
	d.index = (d.index + 1) % len(d.history)
	if d.filled < len(d.history) {
		d.filled++
	}

	var sum float64
	for _, e := range d.history {
		sum += e
	}
	smoothed := sum / float64(d.filled)

	prob := smoothed * d.config.Gain
	if prob > 1 {
		prob = 1
	}
	return prob
}

// Reset clears the smoothing window.
func (d *EnergyDetector) Reset() {
	for i := range d.history {
		d.history[i] = 0
	}
	d.index = 0
	d.filled = 0
}

// rms computes root mean square energy of normalized samples.
func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, sample := range frame {
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
