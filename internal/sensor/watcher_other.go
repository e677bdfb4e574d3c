//go:build !linux

package sensor

import (
	"errors"

	"securitysystem/internal/config"

	"go.uber.org/zap"
)

// ErrUnsupported is returned when GPIO inputs are configured on a platform
// without the character device interface
var ErrUnsupported = errors.New("GPIO inputs require linux")

// Watcher is unavailable on this platform
type Watcher struct{}

func NewWatcher(config.GPIOConfig, *Router, *zap.Logger) *Watcher {
	return &Watcher{}
}

func (w *Watcher) Start() error { return ErrUnsupported }

func (w *Watcher) Close() {}
