package effects

import (
	"context"
	"os/exec"
	"sync"

	"securitysystem/internal/alarm"
	"securitysystem/internal/config"

	"go.uber.org/zap"
)

// Commands runs a configured shell command per event. Commands run in the
// background; a running warning command is killed when the warning is
// cancelled.
type Commands struct {
	cfg       config.CommandsConfig
	proxyMode bool
	logger    *zap.Logger
	run       func(ctx context.Context, command string) ([]byte, error)

	mu            sync.Mutex
	cancelWarning context.CancelFunc
	wg            sync.WaitGroup
}

// NewCommands creates the command collaborator
func NewCommands(cfg config.CommandsConfig, proxyMode bool, logger *zap.Logger) *Commands {
	return &Commands{
		cfg:       cfg,
		proxyMode: proxyMode,
		logger:    logger.Named("commands"),
		run:       runShell,
	}
}

func runShell(ctx context.Context, command string) ([]byte, error) {
	return exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
}

func (c *Commands) Name() string { return "commands" }

// Handle implements Collaborator
func (c *Commands) Handle(ctx context.Context, ev alarm.Event) error {
	if ev.Replay {
		return nil
	}
	if suppressed(c.proxyMode, ev.Origin) {
		c.logger.Debug("Proxy mode, skipping remote event", zap.String("mode", ev.Mode.String()))
		return nil
	}

	command := lookup(c.cfg.Target, c.cfg.Current, ev)
	if command == "" {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	if ev.Mode == alarm.ModeWarning {
		c.mu.Lock()
		if c.cancelWarning != nil {
			c.cancelWarning()
		}
		c.cancelWarning = cancel
		c.mu.Unlock()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		out, err := c.run(runCtx, command)
		if err != nil {
			c.logger.Error("Command failed",
				zap.String("type", string(ev.Type)),
				zap.String("mode", ev.Mode.String()),
				zap.ByteString("output", out),
				zap.Error(err))
			return
		}
		c.logger.Debug("Command finished",
			zap.String("type", string(ev.Type)),
			zap.String("mode", ev.Mode.String()))
	}()
	return nil
}

// CancelWarning kills the warning command if it is still running
func (c *Commands) CancelWarning(alarm.Origin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelWarning != nil {
		c.cancelWarning()
		c.cancelWarning = nil
	}
}

// Wait blocks until every started command has exited
func (c *Commands) Wait() {
	c.wg.Wait()
}

// lookup returns the configured value for an event, keyed by mode within
// the target or current section
func lookup(target, current map[string]string, ev alarm.Event) string {
	switch ev.Type {
	case alarm.EventTarget:
		return target[ev.Mode.String()]
	case alarm.EventCurrent:
		return current[ev.Mode.String()]
	}
	return ""
}

// suppressed reports whether proxy mode hides an event's effects
func suppressed(proxyMode bool, origin alarm.Origin) bool {
	return proxyMode && origin == alarm.OriginRemote
}
