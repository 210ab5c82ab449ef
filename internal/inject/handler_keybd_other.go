//go:build !linux && !windows

package inject

import (
	"fmt"
	"runtime"

	"github.com/PixPMusic/gopher-keys/internal/keys"
)

// KeybdHandler is unavailable on this platform
type KeybdHandler struct{}

func NewKeybdHandler() *KeybdHandler {
	return &KeybdHandler{}
}

func (h *KeybdHandler) IsSupported() bool {
	return false
}

func (h *KeybdHandler) CanSend(code keys.Code) bool {
	return false
}

func (h *KeybdHandler) Press(code keys.Code) error {
	return fmt.Errorf("keybd injection is not supported on %s", runtime.GOOS)
}

func (h *KeybdHandler) Release(code keys.Code) error {
	return fmt.Errorf("keybd injection is not supported on %s", runtime.GOOS)
}
