// Package copilot turns driver-app screen text into overlay instructions
package copilot

import "time"

// Text sources
const (
	SourceOCR           = "ocr"
	SourceAccessibility = "accessibility"
	SourceAPI           = "api"
)

// Manager configuration constants
const (
	// Overlay fan-out buffer; instructions are dropped when the consumer lags
	OverlayChannelBuffer = 16

	// Pending offer events awaiting the sink
	EventQueueSize = 256

	// Upper bound on a single sink publish
	PublishTimeout = 2 * time.Second

	// History page sizes for the API
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Driver app package names reported by the accessibility service
const (
	PackageUberDriver = "com.ubercab.driver"
	PackageLyftDriver = "com.lyft.android.driver"
)
