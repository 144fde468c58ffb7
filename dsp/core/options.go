package core

// ProcessorConfig defines common rendering settings.
type ProcessorConfig struct {
	SampleRate float64

	// MinLength is the smallest output buffer a renderer allocates.
	MinLength int

	// MaxDuration is the longest impulse response, in seconds, a renderer
	// accepts.
	MaxDuration float64
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns the settings used by playback nodes.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate:  48000,
		MinLength:   512,
		MaxDuration: 60,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithMinLength sets the minimum output length in samples.
func WithMinLength(n int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if n > 0 {
			cfg.MinLength = n
		}
	}
}

// WithMaxDuration sets the longest accepted impulse response in seconds.
func WithMaxDuration(seconds float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if seconds > 0 && Finite(seconds) {
			cfg.MaxDuration = seconds
		}
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Samples converts seconds to a whole number of samples, rounding up.
func (cfg ProcessorConfig) Samples(seconds float64) int {
	n := seconds * cfg.SampleRate
	i := int(n)
	if float64(i) < n {
		i++
	}
	return i
}

// Seconds converts a sample count to seconds.
func (cfg ProcessorConfig) Seconds(samples int) float64 {
	return float64(samples) / cfg.SampleRate
}
