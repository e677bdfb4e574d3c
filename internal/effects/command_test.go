package effects

import (
	"context"
	"sync"
	"testing"
	"time"

	"securitysystem/internal/alarm"
	"securitysystem/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type commandLog struct {
	mu   sync.Mutex
	runs []string
}

func (l *commandLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, s)
}

func (l *commandLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.runs...)
}

func newTestCommands(proxy bool, log *commandLog) *Commands {
	cfg := config.CommandsConfig{
		TimeoutSeconds: 5,
		Target:         map[string]string{"away": "echo target-away"},
		Current:        map[string]string{"away": "echo current-away", "warning": "sleep 60"},
	}
	c := NewCommands(cfg, proxy, zap.NewNop())
	c.run = func(ctx context.Context, command string) ([]byte, error) {
		log.add(command)
		if command == "sleep 60" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []byte("ok"), nil
	}
	return c
}

func TestCommands_RunsConfiguredCommand(t *testing.T) {
	log := &commandLog{}
	c := newTestCommands(false, log)

	ctx := context.Background()
	require.NoError(t, c.Handle(ctx, alarm.Event{Type: alarm.EventTarget, Mode: alarm.ModeAway, Origin: alarm.OriginRemote}))
	require.NoError(t, c.Handle(ctx, alarm.Event{Type: alarm.EventCurrent, Mode: alarm.ModeAway}))
	require.NoError(t, c.Handle(ctx, alarm.Event{Type: alarm.EventCurrent, Mode: alarm.ModeHome}))
	require.NoError(t, c.Handle(ctx, alarm.Event{Type: alarm.EventCurrent, Mode: alarm.ModeAway, Replay: true}))
	c.Wait()

	assert.ElementsMatch(t, []string{"echo target-away", "echo current-away"}, log.all())
}

func TestCommands_ProxyModeSkipsRemote(t *testing.T) {
	log := &commandLog{}
	c := newTestCommands(true, log)

	ctx := context.Background()
	require.NoError(t, c.Handle(ctx, alarm.Event{Type: alarm.EventTarget, Mode: alarm.ModeAway, Origin: alarm.OriginRemote}))
	require.NoError(t, c.Handle(ctx, alarm.Event{Type: alarm.EventCurrent, Mode: alarm.ModeAway, Origin: alarm.OriginLocal}))
	c.Wait()

	assert.Equal(t, []string{"echo current-away"}, log.all())
}

func TestCommands_CancelWarningKillsCommand(t *testing.T) {
	log := &commandLog{}
	c := newTestCommands(false, log)

	require.NoError(t, c.Handle(context.Background(), alarm.Event{Type: alarm.EventCurrent, Mode: alarm.ModeWarning}))
	c.CancelWarning(alarm.OriginLocal)

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("warning command was not cancelled")
	}
}

func TestRunShell(t *testing.T) {
	out, err := runShell(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runShell(ctx, "echo never")
	assert.Error(t, err)
}
