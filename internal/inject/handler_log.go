package inject

import (
	"log/slog"

	"github.com/PixPMusic/gopher-keys/internal/keys"
)

// LogHandler only records what would have been injected
type LogHandler struct {
	logger *slog.Logger
}

func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) IsSupported() bool {
	return true
}

func (h *LogHandler) CanSend(code keys.Code) bool {
	return true
}

func (h *LogHandler) Press(code keys.Code) error {
	h.logger.Info("inject: press (dry run)", "key", code.Name(), "code", int(code))
	return nil
}

func (h *LogHandler) Release(code keys.Code) error {
	h.logger.Info("inject: release (dry run)", "key", code.Name(), "code", int(code))
	return nil
}
