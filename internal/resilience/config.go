package resilience

import "time"

// Breaker profiles
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Remote OCR sits on the capture hot path; fail fast and fall back to local OCR.
	OCRThreshold         = 3
	OCRResetTimeout      = 10 * time.Second
	OCRHalfOpenSuccesses = 2

	// History writes tolerate longer database hiccups.
	StorageThreshold         = 10
	StorageResetTimeout      = 60 * time.Second
	StorageHalfOpenSuccesses = 5
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // used in logs and metrics
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DefaultConfig returns general purpose defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// OCRConfig returns settings for the remote OCR client.
func OCRConfig() Config {
	return Config{
		Name:              "ocr",
		Threshold:         OCRThreshold,
		ResetTimeout:      OCRResetTimeout,
		HalfOpenSuccesses: OCRHalfOpenSuccesses,
	}
}

// StorageConfig returns settings for ride history persistence.
func StorageConfig() Config {
	return Config{
		Name:              "storage",
		Threshold:         StorageThreshold,
		ResetTimeout:      StorageResetTimeout,
		HalfOpenSuccesses: StorageHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
