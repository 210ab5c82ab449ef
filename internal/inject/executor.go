package inject

import (
	"fmt"
	"log/slog"

	"github.com/PixPMusic/gopher-keys/internal/keys"
)

// Backend names an injection mechanism
type Backend string

const (
	BackendAuto    Backend = "auto"
	BackendKeybd   Backend = "keybd"
	BackendXdotool Backend = "xdotool"
	BackendLog     Backend = "log"
)

// autoOrder is the preference order for BackendAuto
var autoOrder = []Backend{BackendKeybd, BackendXdotool, BackendLog}

// Injector presses and releases keys through the selected handler. Failures
// are logged, never returned: callers treat injection as fire-and-forget.
type Injector struct {
	backend Backend
	handler Handler
	logger  *slog.Logger
}

// New creates an injector for the given backend. An empty backend means
// BackendAuto.
func New(backend Backend, logger *slog.Logger) (*Injector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	handlers := map[Backend]Handler{
		BackendKeybd:   NewKeybdHandler(),
		BackendXdotool: NewXdotoolHandler(),
		BackendLog:     NewLogHandler(logger),
	}
	return newWithHandlers(backend, handlers, logger)
}

func newWithHandlers(backend Backend, handlers map[Backend]Handler, logger *slog.Logger) (*Injector, error) {
	if backend == "" {
		backend = BackendAuto
	}

	if backend == BackendAuto {
		for _, b := range autoOrder {
			if h, ok := handlers[b]; ok && h.IsSupported() {
				logger.Info("inject: selected backend", "backend", b)
				return &Injector{backend: b, handler: h, logger: logger}, nil
			}
		}
		return nil, fmt.Errorf("no supported key injection backend")
	}

	h, ok := handlers[backend]
	if !ok {
		return nil, fmt.Errorf("unknown injection backend: %s", backend)
	}
	if !h.IsSupported() {
		return nil, fmt.Errorf("injection backend %s is not supported here", backend)
	}
	return &Injector{backend: backend, handler: h, logger: logger}, nil
}

// Backend returns the backend in use
func (i *Injector) Backend() Backend {
	return i.backend
}

// CanSend reports whether the selected backend can inject code
func (i *Injector) CanSend(code keys.Code) bool {
	return i.handler.CanSend(code)
}

// Press puts a key down
func (i *Injector) Press(code keys.Code) {
	if err := i.handler.Press(code); err != nil {
		i.logger.Error("inject: press failed", "backend", i.backend, "key", code.Name(), "err", err)
	}
}

// Release lets a key up
func (i *Injector) Release(code keys.Code) {
	if err := i.handler.Release(code); err != nil {
		i.logger.Error("inject: release failed", "backend", i.backend, "key", code.Name(), "err", err)
	}
}
