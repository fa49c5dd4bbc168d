package bridge

import (
	"fmt"
	"log/slog"

	"github.com/c360/alusync/config"
	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/pkg/retry"
)

// Open builds the configured backend. The returned close func releases the
// hardware and is never nil.
func Open(cfg config.BridgeConfig, logger *slog.Logger) (Bridge, func() error, error) {
	switch cfg.Backend {
	case config.BackendEmulator, "":
		return NewEmulator(), func() error { return nil }, nil
	case config.BackendGPIO:
		lines := NewRetryingLines(NewRPIOLines(), retry.Quick())
		b, err := NewGPIOBridge(cfg.GPIO, lines, logger)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, errors.WrapInvalid(fmt.Errorf("%w: backend %q", errors.ErrInvalidConfig, cfg.Backend),
			"bridge", "Open", "select backend")
	}
}
