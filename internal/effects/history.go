package effects

import (
	"context"
	"time"

	"securitysystem/internal/alarm"
	"securitysystem/internal/config"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const (
	eventMeasurement  = "security_events"
	signalMeasurement = "security_signals"

	millisecondsPerSecond = 1000
)

// pointWriter is the non-blocking part of the InfluxDB write API
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// History records every event as an InfluxDB point. Writes are batched
// by the client and never block.
type History struct {
	writer pointWriter
	client influxdb2.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewHistory creates the history collaborator. The server is not contacted
// until the first batch is flushed; write errors are logged.
func NewHistory(cfg config.InfluxDBConfig, logger *zap.Logger) *History {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	h := newHistory(writeAPI, logger)
	h.client = client

	go func() {
		for err := range writeAPI.Errors() {
			h.logger.Error("History write failed", zap.Error(err))
		}
	}()
	return h
}

func newHistory(w pointWriter, logger *zap.Logger) *History {
	return &History{
		writer: w,
		logger: logger.Named("history"),
		now:    time.Now,
	}
}

func (h *History) Name() string { return "history" }

// Handle implements Collaborator
func (h *History) Handle(_ context.Context, ev alarm.Event) error {
	p := influxdb2.NewPoint(
		eventMeasurement,
		map[string]string{
			"type":   string(ev.Type),
			"mode":   ev.Mode.String(),
			"origin": string(ev.Origin),
		},
		map[string]interface{}{
			"current_mode": ev.State.CurrentMode.String(),
			"target_mode":  ev.State.TargetMode.String(),
			"arming":       ev.State.Arming,
			"replay":       ev.Replay,
		},
		h.now(),
	)
	h.writer.WritePoint(p)
	return nil
}

// HandleSignal implements SignalHandler
func (h *History) HandleSignal(_ context.Context, name string, on bool) error {
	p := influxdb2.NewPoint(
		signalMeasurement,
		map[string]string{"signal": name},
		map[string]interface{}{"on": on},
		h.now(),
	)
	h.writer.WritePoint(p)
	return nil
}

// Close flushes pending points and closes the client
func (h *History) Close() {
	h.writer.Flush()
	if h.client != nil {
		h.client.Close()
	}
}
