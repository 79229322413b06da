package screen

// Screen processing constants
const (
	// Frames per second when the configured rate is not positive
	DefaultCaptureRate = 1.0

	// Similar frames skipped in a row before OCR is forced
	MaxConsecutiveSkips = 3
)
