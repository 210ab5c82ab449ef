package inject

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/PixPMusic/gopher-keys/internal/keys"
)

// XdotoolHandler injects keys on X11 by running xdotool
type XdotoolHandler struct {
	// run executes a command; replaced in tests
	run func(name string, args ...string) error
}

func NewXdotoolHandler() *XdotoolHandler {
	return &XdotoolHandler{run: runCommand}
}

func runCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s error: %s", name, msg)
		}
		return fmt.Errorf("%s failed: %v", name, err)
	}
	return nil
}

func (h *XdotoolHandler) IsSupported() bool {
	if runtime.GOOS != "linux" || os.Getenv("DISPLAY") == "" {
		return false
	}
	_, err := exec.LookPath("xdotool")
	return err == nil
}

func (h *XdotoolHandler) CanSend(code keys.Code) bool {
	_, ok := keysym(code)
	return ok
}

func (h *XdotoolHandler) Press(code keys.Code) error {
	return h.send("keydown", code)
}

func (h *XdotoolHandler) Release(code keys.Code) error {
	return h.send("keyup", code)
}

func (h *XdotoolHandler) send(verb string, code keys.Code) error {
	sym, ok := keysym(code)
	if !ok {
		return fmt.Errorf("no X keysym for key %s", code.Name())
	}
	return h.run("xdotool", verb, sym)
}

var xKeysyms = map[keys.Code]string{
	keys.Back:       "BackSpace",
	keys.Tab:        "Tab",
	keys.Enter:      "Return",
	keys.ShiftKey:   "Shift_L",
	keys.LShiftKey:  "Shift_L",
	keys.RShiftKey:  "Shift_R",
	keys.ControlKey: "Control_L",
	keys.LControl:   "Control_L",
	keys.RControl:   "Control_R",
	keys.Menu:       "Alt_L",
	keys.LMenu:      "Alt_L",
	keys.RMenu:      "Alt_R",
	keys.CapsLock:   "Caps_Lock",
	keys.Escape:     "Escape",
	keys.Space:      "space",
	keys.PageUp:     "Prior",
	keys.PageDown:   "Next",
	keys.End:        "End",
	keys.Home:       "Home",
	keys.Left:       "Left",
	keys.Up:         "Up",
	keys.Right:      "Right",
	keys.Down:       "Down",
	keys.Insert:     "Insert",
	keys.Delete:     "Delete",
	keys.Multiply:   "KP_Multiply",
	keys.Add:        "KP_Add",
	keys.Subtract:   "KP_Subtract",
	keys.Decimal:    "KP_Decimal",
	keys.Divide:     "KP_Divide",
	keys.OemSemi:    "semicolon",
	keys.OemPlus:    "equal",
	keys.OemComma:   "comma",
	keys.OemMinus:   "minus",
	keys.OemPeriod:  "period",
	keys.OemQuest:   "slash",
	keys.OemTilde:   "grave",
	keys.OemOpen:    "bracketleft",
	keys.OemPipe:    "backslash",
	keys.OemClose:   "bracketright",
	keys.OemQuotes:  "apostrophe",
}

// keysym maps a key code to its X keysym name
func keysym(code keys.Code) (string, bool) {
	switch {
	case code >= keys.A && code < keys.A+26:
		return string(rune('a' + int(code-keys.A))), true
	case code >= keys.D0 && code < keys.D0+10:
		return string(rune('0' + int(code-keys.D0))), true
	case code >= keys.NumPad0 && code < keys.NumPad0+10:
		return fmt.Sprintf("KP_%d", code-keys.NumPad0), true
	case code >= keys.F1 && code < keys.F1+24:
		return fmt.Sprintf("F%d", code-keys.F1+1), true
	}
	sym, ok := xKeysyms[code]
	return sym, ok
}
