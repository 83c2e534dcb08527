package alerts

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/clock"
	"github.com/elevated-systems/greenflow/pkg/greenflow/extractor"
	"github.com/elevated-systems/greenflow/pkg/greenflow/types"
)

// Evaluator decides which alerts a persisted event raises. It performs no
// I/O; callers persist the returned alerts in the same transaction as the
// event.
type Evaluator struct {
	extractor    *extractor.Extractor
	criticalRisk float64
	clock        clock.Clock
}

// NewEvaluator creates an evaluator sharing ex's thresholds
func NewEvaluator(ex *extractor.Extractor, criticalRisk float64, clk clock.Clock) *Evaluator {
	return &Evaluator{
		extractor:    ex,
		criticalRisk: criticalRisk,
		clock:        clk,
	}
}

// Evaluate returns zero, one or two alerts for event. HIGH_CO2 and
// CRITICAL_RISK are checked independently.
func (e *Evaluator) Evaluate(event types.PersistedEvent) []types.Alert {
	var out []types.Alert
	now := clock.UnixSeconds(e.clock.Now())

	if event.Severity == types.SeverityDanger || event.Severity == types.SeverityCritical {
		severity := types.AlertSeverityWarning
		if event.Severity == types.SeverityCritical {
			severity = types.AlertSeverityCritical
		}
		out = append(out, types.Alert{
			EventID:  event.ID,
			Type:     types.AlertHighCO2,
			Severity: severity,
			Message: fmt.Sprintf("CO2 level at %.1f ppm from '%s' exceeds safe threshold (%.0f ppm). Risk score: %.2f.",
				event.CO2PPM, event.Source, e.extractor.Thresholds().Danger, event.RiskScore),
			Timestamp: now,
		})
	}

	if event.RiskScore >= e.criticalRisk {
		out = append(out, types.Alert{
			EventID:   event.ID,
			Type:      types.AlertCriticalRisk,
			Severity:  types.AlertSeverityCritical,
			Message:   fmt.Sprintf("Risk score %.2f from '%s' is critically high. Immediate action required.", event.RiskScore, event.Source),
			Timestamp: now,
		})
	}

	if len(out) > 0 {
		klog.V(2).InfoS("Alerts raised", "eventID", event.ID, "source", event.Source, "count", len(out))
	}
	return out
}
