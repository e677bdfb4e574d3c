package effects

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"securitysystem/internal/alarm"
	"securitysystem/internal/config"

	"go.uber.org/zap"
)

const warningSound = "current-warning"

// process is a running player
type process interface {
	Stop()
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Stop() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

func startProcess(name string, args ...string) (process, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	// reap the player when it exits or is killed
	go func() { _ = cmd.Wait() }()
	return &execProcess{cmd: cmd}, nil
}

// Audio plays a sound file per event with an external player. Starting a
// sound stops the one before it. Audio plays for every origin.
type Audio struct {
	cfg    config.AudioConfig
	logger *zap.Logger
	start  func(name string, args ...string) (process, error)

	mu      sync.Mutex
	current process
	playing string
}

// NewAudio creates the audio collaborator
func NewAudio(cfg config.AudioConfig, logger *zap.Logger) *Audio {
	return &Audio{
		cfg:    cfg,
		logger: logger.Named("audio"),
		start:  startProcess,
	}
}

func (a *Audio) Name() string { return "audio" }

// Handle implements Collaborator
func (a *Audio) Handle(_ context.Context, ev alarm.Event) error {
	if !ev.State.AudioEnabled {
		a.Stop()
		return nil
	}

	sound, loop, ok := a.soundFor(ev)
	if !ok {
		a.Stop()
		return nil
	}
	return a.play(sound, loop)
}

// soundFor picks the sound for an event. A replayed event resumes the
// arming sound while arming and is silent otherwise.
func (a *Audio) soundFor(ev alarm.Event) (string, bool, bool) {
	if ev.Replay {
		if ev.State.Arming {
			return "target-" + ev.State.TargetMode.String(), a.cfg.ArmingLooped, true
		}
		return "", false, false
	}

	name := fmt.Sprintf("%s-%s", ev.Type, ev.Mode)
	switch {
	case ev.Type == alarm.EventTarget && ev.State.Arming:
		return name, a.cfg.ArmingLooped, true
	case ev.Mode == alarm.ModeWarning, ev.Mode == alarm.ModeTriggered:
		return name, a.cfg.AlertLooped, true
	}
	return name, false, true
}

func (a *Audio) play(sound string, loop bool) error {
	path := filepath.Join(a.cfg.SoundsDir, a.cfg.Language, sound+".mp3")
	if _, err := os.Stat(path); err != nil {
		a.logger.Debug("No sound file for event", zap.String("path", path))
		a.Stop()
		return nil
	}

	args := append([]string{}, a.cfg.PlayerArgs...)
	args = append(args, "-volume", strconv.Itoa(a.cfg.Volume))
	if loop {
		args = append(args, "-loop", "0")
	}
	args = append(args, path)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	p, err := a.start(a.cfg.Player, args...)
	if err != nil {
		return fmt.Errorf("starting %s: %w", a.cfg.Player, err)
	}
	a.current = p
	a.playing = sound

	a.logger.Debug("Playing sound", zap.String("sound", sound), zap.Bool("loop", loop))
	return nil
}

// CancelWarning stops the warning sound if it is playing
func (a *Audio) CancelWarning(alarm.Origin) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playing == warningSound {
		a.stopLocked()
	}
}

// Stop stops the current sound
func (a *Audio) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Audio) stopLocked() {
	if a.current != nil {
		a.current.Stop()
	}
	a.current = nil
	a.playing = ""
}
