package core

import (
	"errors"
)

var (
	// ErrWindowClosed is returned when the window is asked to close while the
	// renderer is still waiting for a usable framebuffer.
	ErrWindowClosed = errors.New("window closed")
)
