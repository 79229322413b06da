// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Text truncation limit for API responses
	TextPreviewLimit = 500

	// Largest request body accepted by the JSON endpoints
	MaxBodyBytes = 64 << 10

	// Upper bound on a single WebSocket write
	WriteTimeout = 5 * time.Second
)

// WebSocket message types
const (
	TypeOverlay     = "overlay"
	TypeOverlayHide = "overlay_hide"
	TypeScreenText  = "screen_text"
	TypeAck         = "ack"
	TypeError       = "error"
)
