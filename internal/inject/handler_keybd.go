//go:build linux || windows

package inject

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"

	"github.com/PixPMusic/gopher-keys/internal/keys"
)

// uinputSettle is how long the kernel needs before a new uinput device
// delivers events
const uinputSettle = 2 * time.Second

// KeybdHandler injects keys through the OS input layer (uinput on Linux,
// SendInput on Windows)
type KeybdHandler struct {
	once sync.Once
	mu   sync.Mutex
	kb   *keybd_event.KeyBonding
	err  error
}

func NewKeybdHandler() *KeybdHandler {
	return &KeybdHandler{}
}

func (h *KeybdHandler) init() error {
	h.once.Do(func() {
		kb, err := keybd_event.NewKeyBonding()
		if err != nil {
			h.err = fmt.Errorf("keybd_event: %w", err)
			return
		}
		if runtime.GOOS == "linux" {
			time.Sleep(uinputSettle)
		}
		h.kb = &kb
	})
	return h.err
}

func (h *KeybdHandler) IsSupported() bool {
	return h.init() == nil
}

func (h *KeybdHandler) Press(code keys.Code) error {
	return h.send(code, true)
}

func (h *KeybdHandler) Release(code keys.Code) error {
	return h.send(code, false)
}

func (h *KeybdHandler) CanSend(code keys.Code) bool {
	if isModifier(code) {
		return true
	}
	_, ok := keybdCode(code)
	return ok
}

func (h *KeybdHandler) send(code keys.Code, down bool) error {
	if err := h.init(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.kb.Clear()
	switch code {
	case keys.ShiftKey, keys.LShiftKey:
		h.kb.HasSHIFT(true)
	case keys.RShiftKey:
		h.kb.HasSHIFTR(true)
	case keys.ControlKey, keys.LControl:
		h.kb.HasCTRL(true)
	case keys.RControl:
		h.kb.HasCTRLR(true)
	case keys.Menu, keys.LMenu, keys.RMenu:
		h.kb.HasALT(true)
	default:
		vk, ok := keybdCode(code)
		if !ok {
			return fmt.Errorf("key %s is not supported by keybd_event", code.Name())
		}
		h.kb.SetKeys(vk)
	}

	if down {
		return h.kb.Press()
	}
	return h.kb.Release()
}

// isModifier reports keys sent through KeyBonding's modifier flags rather
// than as key codes
func isModifier(code keys.Code) bool {
	switch code {
	case keys.ShiftKey, keys.LShiftKey, keys.RShiftKey,
		keys.ControlKey, keys.LControl, keys.RControl,
		keys.Menu, keys.LMenu, keys.RMenu:
		return true
	}
	return false
}

var letterCodes = [26]int{
	keybd_event.VK_A, keybd_event.VK_B, keybd_event.VK_C, keybd_event.VK_D,
	keybd_event.VK_E, keybd_event.VK_F, keybd_event.VK_G, keybd_event.VK_H,
	keybd_event.VK_I, keybd_event.VK_J, keybd_event.VK_K, keybd_event.VK_L,
	keybd_event.VK_M, keybd_event.VK_N, keybd_event.VK_O, keybd_event.VK_P,
	keybd_event.VK_Q, keybd_event.VK_R, keybd_event.VK_S, keybd_event.VK_T,
	keybd_event.VK_U, keybd_event.VK_V, keybd_event.VK_W, keybd_event.VK_X,
	keybd_event.VK_Y, keybd_event.VK_Z,
}

var digitCodes = [10]int{
	keybd_event.VK_0, keybd_event.VK_1, keybd_event.VK_2, keybd_event.VK_3,
	keybd_event.VK_4, keybd_event.VK_5, keybd_event.VK_6, keybd_event.VK_7,
	keybd_event.VK_8, keybd_event.VK_9,
}

var functionCodes = [24]int{
	keybd_event.VK_F1, keybd_event.VK_F2, keybd_event.VK_F3, keybd_event.VK_F4,
	keybd_event.VK_F5, keybd_event.VK_F6, keybd_event.VK_F7, keybd_event.VK_F8,
	keybd_event.VK_F9, keybd_event.VK_F10, keybd_event.VK_F11, keybd_event.VK_F12,
	keybd_event.VK_F13, keybd_event.VK_F14, keybd_event.VK_F15, keybd_event.VK_F16,
	keybd_event.VK_F17, keybd_event.VK_F18, keybd_event.VK_F19, keybd_event.VK_F20,
	keybd_event.VK_F21, keybd_event.VK_F22, keybd_event.VK_F23, keybd_event.VK_F24,
}

var keypadCodes = [10]int{
	keybd_event.VK_KP0, keybd_event.VK_KP1, keybd_event.VK_KP2, keybd_event.VK_KP3,
	keybd_event.VK_KP4, keybd_event.VK_KP5, keybd_event.VK_KP6, keybd_event.VK_KP7,
	keybd_event.VK_KP8, keybd_event.VK_KP9,
}

var commonCodes = map[keys.Code]int{
	keys.Back:      keybd_event.VK_BACKSPACE,
	keys.Tab:       keybd_event.VK_TAB,
	keys.Enter:     keybd_event.VK_ENTER,
	keys.Escape:    keybd_event.VK_ESC,
	keys.Space:     keybd_event.VK_SPACE,
	keys.CapsLock:  keybd_event.VK_CAPSLOCK,
	keys.PageUp:    keybd_event.VK_PAGEUP,
	keys.PageDown:  keybd_event.VK_PAGEDOWN,
	keys.End:       keybd_event.VK_END,
	keys.Home:      keybd_event.VK_HOME,
	keys.Left:      keybd_event.VK_LEFT,
	keys.Up:        keybd_event.VK_UP,
	keys.Right:     keybd_event.VK_RIGHT,
	keys.Down:      keybd_event.VK_DOWN,
	keys.Insert:    keybd_event.VK_INSERT,
	keys.Delete:    keybd_event.VK_DELETE,
	keys.Multiply:  keybd_event.VK_KPASTERISK,
	keys.Add:       keybd_event.VK_KPPLUS,
	keys.Subtract:  keybd_event.VK_KPMINUS,
	keys.Decimal:   keybd_event.VK_KPDOT,
	keys.OemSemi:   keybd_event.VK_SEMICOLON,
	keys.OemPlus:   keybd_event.VK_EQUAL,
	keys.OemComma:  keybd_event.VK_COMMA,
	keys.OemMinus:  keybd_event.VK_MINUS,
	keys.OemPeriod: keybd_event.VK_DOT,
	keys.OemQuest:  keybd_event.VK_SLASH,
	keys.OemTilde:  keybd_event.VK_GRAVE,
	keys.OemOpen:   keybd_event.VK_LEFTBRACE,
	keys.OemPipe:   keybd_event.VK_BACKSLASH,
	keys.OemClose:  keybd_event.VK_RIGHTBRACE,
	keys.OemQuotes: keybd_event.VK_APOSTROPHE,
}

// keybdCode maps a virtual-key code to the keybd_event code for this
// platform. Codes without a shared constant go through platformCode.
func keybdCode(code keys.Code) (int, bool) {
	switch {
	case code >= keys.A && code < keys.A+26:
		return letterCodes[code-keys.A], true
	case code >= keys.D0 && code < keys.D0+10:
		return digitCodes[code-keys.D0], true
	case code >= keys.F1 && code < keys.F1+24:
		return functionCodes[code-keys.F1], true
	case code >= keys.NumPad0 && code < keys.NumPad0+10:
		return keypadCodes[code-keys.NumPad0], true
	}
	if vk, ok := commonCodes[code]; ok {
		return vk, true
	}
	return platformCode(code)
}
