package inject

import (
	"github.com/micmonay/keybd_event"

	"github.com/PixPMusic/gopher-keys/internal/keys"
)

var linuxCodes = map[keys.Code]int{
	keys.Divide: keybd_event.VK_KPSLASH,
}

func platformCode(code keys.Code) (int, bool) {
	vk, ok := linuxCodes[code]
	return vk, ok
}
