//go:build linux

package sensor

import (
	"fmt"
	"sync"

	"securitysystem/internal/config"

	gpiod "github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"
)

// Watcher requests the configured input lines with edge detection and feeds
// every edge into a Router
type Watcher struct {
	cfg    config.GPIOConfig
	router *Router
	logger *zap.Logger

	mu    sync.Mutex
	chip  *gpiod.Chip
	lines []*gpiod.Line
}

// NewWatcher creates a watcher for the router's inputs
func NewWatcher(cfg config.GPIOConfig, router *Router, logger *zap.Logger) *Watcher {
	return &Watcher{
		cfg:    cfg,
		router: router,
		logger: logger.Named("gpio"),
	}
}

// Start opens the chip and requests every input line. The current level of
// each line is reported once so a sensor that is already open is seen.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	chip, err := gpiod.NewChip(w.cfg.Chip)
	if err != nil {
		return fmt.Errorf("open GPIO chip %s: %w", w.cfg.Chip, err)
	}
	w.chip = chip

	for _, in := range w.cfg.Inputs {
		name := in.Name
		opts := []gpiod.LineReqOption{
			gpiod.AsInput,
			gpiod.WithBothEdges,
			gpiod.WithEventHandler(func(evt gpiod.LineEvent) {
				w.router.Level(name, evt.Type == gpiod.LineEventRisingEdge)
			}),
		}
		if in.PullUp {
			opts = append(opts, gpiod.WithPullUp)
		}

		line, err := chip.RequestLine(in.Line, opts...)
		if err != nil {
			w.closeLocked()
			return fmt.Errorf("request GPIO line %d for %s: %w", in.Line, name, err)
		}
		w.lines = append(w.lines, line)

		val, err := line.Value()
		if err != nil {
			w.logger.Warn("Failed to read initial level", zap.String("input", name), zap.Error(err))
			continue
		}
		w.router.Level(name, val == 1)

		w.logger.Info("Watching input",
			zap.String("input", name),
			zap.Int("line", in.Line),
			zap.String("mode", in.Mode))
	}

	return nil
}

// Close releases every line and the chip
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeLocked()
}

func (w *Watcher) closeLocked() {
	for _, line := range w.lines {
		if err := line.Close(); err != nil {
			w.logger.Warn("Failed to release GPIO line", zap.Error(err))
		}
	}
	w.lines = nil

	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			w.logger.Warn("Failed to close GPIO chip", zap.Error(err))
		}
		w.chip = nil
	}
}
