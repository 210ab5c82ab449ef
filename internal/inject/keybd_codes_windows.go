package inject

import "github.com/PixPMusic/gopher-keys/internal/keys"

// keybd_event sends codes above virtualKeyOffset as Windows virtual-key
// codes instead of scan codes.
const virtualKeyOffset = 0xFFF

// Every code is already a Windows virtual-key code.
func platformCode(code keys.Code) (int, bool) {
	if code <= 0 || code > 0xFF {
		return 0, false
	}
	return int(code) + virtualKeyOffset, true
}
