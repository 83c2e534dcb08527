package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/clock"
	"github.com/elevated-systems/greenflow/pkg/greenflow/config"
	"github.com/elevated-systems/greenflow/pkg/greenflow/extractor"
	"github.com/elevated-systems/greenflow/pkg/greenflow/metrics"
	"github.com/elevated-systems/greenflow/pkg/greenflow/types"
)

// FallbackSource labels synthesized readings
const FallbackSource = "live-sensor"

const (
	kindLog      = "log"
	kindFallback = "fallback"
	kindError    = "error"
)

// LogReader is the read side of the output log
type LogReader interface {
	Tail(n int) ([]types.EnrichedReading, error)
}

// Message is one push channel payload
type Message struct {
	CO2PPM      float64        `json:"co2_ppm"`
	RiskScore   float64        `json:"risk_score"`
	CarbonScore float64        `json:"carbon_score"`
	Severity    types.Severity `json:"severity"`
	Timestamp   float64        `json:"timestamp"`
	Source      string         `json:"source"`
	Error       string         `json:"error,omitempty"`
}

// PublishFunc delivers one serialized message. An error means the
// subscriber is gone and ends the loop.
type PublishFunc func(payload []byte) error

// Tailer samples the newest output log record on a fixed cadence. One
// Tailer is shared by all subscribers; each subscriber runs its own loop.
type Tailer struct {
	log       LogReader
	extractor *extractor.Extractor
	clock     clock.Clock
	cfg       config.StreamConfig
	random    func() float64 // [0, 1)
}

// NewTailer creates a tailer reading from log
func NewTailer(log LogReader, ex *extractor.Extractor, clk clock.Clock, cfg config.StreamConfig) *Tailer {
	return &Tailer{
		log:       log,
		extractor: ex,
		clock:     clk,
		cfg:       cfg,
		random:    rand.Float64,
	}
}

// Run publishes a message immediately and then once per interval until ctx
// ends or publish fails. Internal errors are published as error messages
// and never end the loop.
func (t *Tailer) Run(ctx context.Context, publish PublishFunc) error {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		payload, kind := t.Payload()
		metrics.StreamMessages.WithLabelValues(kind).Inc()
		if err := publish(payload); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Payload serializes the current sample. It always returns a well formed
// JSON object.
func (t *Tailer) Payload() (payload []byte, kind string) {
	defer func() {
		if r := recover(); r != nil {
			payload, kind = errorPayload(fmt.Errorf("panic while sampling: %v", r)), kindError
		}
	}()

	msg, kind := t.Sample()
	data, err := json.Marshal(msg)
	if err != nil {
		klog.ErrorS(err, "Failed to serialize live tail message")
		return errorPayload(err), kindError
	}
	return data, kind
}

// Sample returns the newest log record, or a synthesized reading when the
// log is empty or unreadable.
func (t *Tailer) Sample() (Message, string) {
	recs, err := t.log.Tail(1)
	if err != nil {
		klog.V(2).InfoS("Output log unreadable, using fallback sample", "err", err)
	}
	if err == nil && len(recs) > 0 {
		return toMessage(recs[len(recs)-1]), kindLog
	}
	return toMessage(t.fallback()), kindFallback
}

func (t *Tailer) fallback() types.EnrichedReading {
	co2 := t.cfg.DemoMin + t.random()*(t.cfg.DemoMax-t.cfg.DemoMin)
	co2 = math.Round(co2*100) / 100
	return t.extractor.Enrich(types.Reading{
		Source:    FallbackSource,
		Timestamp: clock.UnixSeconds(t.clock.Now()),
		CO2PPM:    co2,
	})
}

func toMessage(r types.EnrichedReading) Message {
	return Message{
		CO2PPM:      r.CO2PPM,
		RiskScore:   r.RiskScore,
		CarbonScore: r.CarbonScore,
		Severity:    r.Severity,
		Timestamp:   r.Timestamp,
		Source:      r.Source,
	}
}

func errorPayload(err error) []byte {
	data, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return data
}
