package extractor

import (
	"fmt"

	"github.com/elevated-systems/greenflow/pkg/greenflow/config"
	"github.com/elevated-systems/greenflow/pkg/greenflow/types"
)

const (
	// RiskDivisor is the ppm at which the uncapped risk score reaches 1.0
	RiskDivisor = 500.0
	// CarbonBaseline is the ppm below which carbon score is zero; it is also the score scale
	CarbonBaseline = 350.0
	// AnomalyZ is the z-score above which a reading is flagged anomalous
	AnomalyZ = 2.0
)

// Extractor derives scores from CO2 readings. It holds one copy of the
// threshold configuration and is safe for concurrent use.
type Extractor struct {
	thresholds config.ThresholdConfig
}

// New creates an extractor bound to a validated threshold set
func New(thresholds config.ThresholdConfig) (*Extractor, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{thresholds: thresholds}, nil
}

// Thresholds returns a copy of the bound configuration
func (e *Extractor) Thresholds() config.ThresholdConfig {
	return e.thresholds
}

// RiskScore is co2/500 capped at the configured maximum
func (e *Extractor) RiskScore(co2 float64) float64 {
	return min(co2/RiskDivisor, e.thresholds.RiskScoreMax)
}

// CarbonScore is the relative excess over the 350 ppm baseline, floored at zero
func (e *Extractor) CarbonScore(co2 float64) float64 {
	return max((co2-CarbonBaseline)/CarbonBaseline, 0.0)
}

// ClassifySeverity maps co2 onto the four labels. Each band is closed on its
// lower bound.
func (e *Extractor) ClassifySeverity(co2 float64) types.Severity {
	switch {
	case co2 < e.thresholds.Warning:
		return types.SeveritySafe
	case co2 < e.thresholds.Danger:
		return types.SeverityWarning
	case co2 < e.thresholds.Critical:
		return types.SeverityDanger
	default:
		return types.SeverityCritical
	}
}

// IsAnomaly reports whether co2 lies more than AnomalyZ deviations above baseline
func (e *Extractor) IsAnomaly(co2 float64) bool {
	return (co2-e.thresholds.AnomalyBaseline)/e.thresholds.AnomalyStdDev > AnomalyZ
}

// Enrich derives every score for r. It never fails and never mutates r.
func (e *Extractor) Enrich(r types.Reading) types.EnrichedReading {
	return types.EnrichedReading{
		Reading:     r,
		RiskScore:   e.RiskScore(r.CO2PPM),
		CarbonScore: e.CarbonScore(r.CO2PPM),
		Severity:    e.ClassifySeverity(r.CO2PPM),
		Anomaly:     e.IsAnomaly(r.CO2PPM),
	}
}

// Reference describes the live thresholds and formulas in prose, for the
// question answering knowledge base.
func (e *Extractor) Reference() string {
	t := e.thresholds
	return fmt.Sprintf("GreenFlow classifies CO2 readings with these thresholds: "+
		"safe below %.0f ppm, warning from %.0f ppm, danger from %.0f ppm, critical from %.0f ppm. "+
		"Risk score = min(co2_ppm / %.0f, %.2f). "+
		"Carbon score = max((co2_ppm - %.0f) / %.0f, 0). "+
		"A reading is an anomaly when (co2_ppm - %.0f) / %.0f exceeds %.1f.",
		t.Warning, t.Warning, t.Danger, t.Critical,
		RiskDivisor, t.RiskScoreMax,
		CarbonBaseline, CarbonBaseline,
		t.AnomalyBaseline, t.AnomalyStdDev, AnomalyZ)
}
