package inject

import "github.com/PixPMusic/gopher-keys/internal/keys"

// Handler drives one key injection mechanism
type Handler interface {
	// Press puts the key down
	Press(code keys.Code) error

	// Release lets the key up
	Release(code keys.Code) error

	// IsSupported returns true if the handler can run on the current platform
	IsSupported() bool

	// CanSend reports whether the handler has a mapping for code
	CanSend(code keys.Code) bool
}
