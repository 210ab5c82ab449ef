package keys

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Code is a keyboard key identifier. Values are Windows virtual-key codes so
// profiles stay portable between platforms and older tools.
type Code int

// Common key codes
const (
	Back       Code = 8
	Tab        Code = 9
	Enter      Code = 13
	ShiftKey   Code = 16
	ControlKey Code = 17
	Menu       Code = 18 // Alt
	CapsLock   Code = 20
	Escape     Code = 27
	Space      Code = 32
	PageUp     Code = 33
	PageDown   Code = 34
	End        Code = 35
	Home       Code = 36
	Left       Code = 37
	Up         Code = 38
	Right      Code = 39
	Down       Code = 40
	Insert     Code = 45
	Delete     Code = 46
	D0         Code = 48
	A          Code = 65
	NumPad0    Code = 96
	Multiply   Code = 106
	Add        Code = 107
	Subtract   Code = 109
	Decimal    Code = 110
	Divide     Code = 111
	F1         Code = 112
	LShiftKey  Code = 160
	RShiftKey  Code = 161
	LControl   Code = 162
	RControl   Code = 163
	LMenu      Code = 164
	RMenu      Code = 165
	OemSemi    Code = 186
	OemPlus    Code = 187
	OemComma   Code = 188
	OemMinus   Code = 189
	OemPeriod  Code = 190
	OemQuest   Code = 191
	OemTilde   Code = 192
	OemOpen    Code = 219
	OemPipe    Code = 220
	OemClose   Code = 221
	OemQuotes  Code = 222
)

// names holds every accepted key name. Aliases share a code; the canonical
// display name for each code lives in display.
var names = map[string]Code{}

var display = map[Code]string{}

func register(code Code, canonical string, aliases ...string) {
	names[canonical] = code
	display[code] = canonical
	for _, a := range aliases {
		names[a] = code
	}
}

func init() {
	register(Back, "Back", "Backspace")
	register(Tab, "Tab")
	register(Enter, "Enter", "Return")
	register(ShiftKey, "ShiftKey", "Shift")
	register(ControlKey, "ControlKey", "Control", "Ctrl")
	register(Menu, "Menu", "Alt")
	register(CapsLock, "CapsLock", "Capital")
	register(Escape, "Escape", "Esc")
	register(Space, "Space")
	register(PageUp, "PageUp", "Prior")
	register(PageDown, "PageDown", "Next")
	register(End, "End")
	register(Home, "Home")
	register(Left, "Left")
	register(Up, "Up")
	register(Right, "Right")
	register(Down, "Down")
	register(Insert, "Insert")
	register(Delete, "Delete")
	register(Multiply, "Multiply")
	register(Add, "Add")
	register(Subtract, "Subtract")
	register(Decimal, "Decimal")
	register(Divide, "Divide")
	register(LShiftKey, "LShiftKey")
	register(RShiftKey, "RShiftKey")
	register(LControl, "LControlKey")
	register(RControl, "RControlKey")
	register(LMenu, "LMenu")
	register(RMenu, "RMenu")
	register(OemSemi, "OemSemicolon", "Oem1")
	register(OemPlus, "Oemplus")
	register(OemComma, "Oemcomma")
	register(OemMinus, "OemMinus")
	register(OemPeriod, "OemPeriod")
	register(OemQuest, "OemQuestion", "Oem2")
	register(OemTilde, "Oemtilde", "Oem3")
	register(OemOpen, "OemOpenBrackets", "Oem4")
	register(OemPipe, "OemPipe", "Oem5")
	register(OemClose, "OemCloseBrackets", "Oem6")
	register(OemQuotes, "OemQuotes", "Oem7")

	for i := 0; i < 26; i++ {
		register(A+Code(i), string(rune('A'+i)))
	}
	for i := 0; i < 10; i++ {
		register(D0+Code(i), fmt.Sprintf("D%d", i))
		register(NumPad0+Code(i), fmt.Sprintf("NumPad%d", i))
	}
	for i := 0; i < 24; i++ {
		register(F1+Code(i), fmt.Sprintf("F%d", i+1))
	}
}

// Normalize upper-cases the first character of input and leaves the rest
// untouched, so "space" becomes "Space" but "SPACE" stays as typed.
func Normalize(input string) string {
	if input == "" {
		return ""
	}
	return strings.ToUpper(input[:1]) + input[1:]
}

// Parse resolves user input to a key code. The input is normalized first and
// then matched case-sensitively against the known names. A plain decimal
// number in the virtual-key range is accepted as a raw code.
func Parse(input string) (Code, bool) {
	input = Normalize(input)
	if input == "" {
		return 0, false
	}
	if code, ok := names[input]; ok {
		return code, true
	}
	if n, err := strconv.Atoi(input); err == nil && input[0] != '+' && n > 0 && n < 256 {
		return Code(n), true
	}
	return 0, false
}

// Named returns every code that has a display name, in ascending order.
func Named() []Code {
	codes := make([]Code, 0, len(display))
	for c := range display {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes
}

// Name returns the display name of a key code.
func (c Code) Name() string {
	if name, ok := display[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

func (c Code) String() string {
	return c.Name()
}

// Examples are shown in the setup prompt.
var Examples = []string{"Space", "A", "Delete"}
