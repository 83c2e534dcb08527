package types

import "fmt"

// Severity is the ordinal CO2 classification of a reading
type Severity string

const (
	SeveritySafe     Severity = "safe"
	SeverityWarning  Severity = "warning"
	SeverityDanger   Severity = "danger"
	SeverityCritical Severity = "critical"
)

// Severities lists every label in ascending order
var Severities = []Severity{SeveritySafe, SeverityWarning, SeverityDanger, SeverityCritical}

// Valid reports whether s is one of the four known labels
func (s Severity) Valid() bool {
	switch s {
	case SeveritySafe, SeverityWarning, SeverityDanger, SeverityCritical:
		return true
	}
	return false
}

// Reading is one raw sensor observation. Immutable once created.
type Reading struct {
	Source    string  `json:"source"`
	Timestamp float64 `json:"timestamp"` // Unix seconds
	CO2PPM    float64 `json:"co2_ppm"`
	Location  *string `json:"location"`
}

// EnrichedReading is a Reading plus its derived scores
type EnrichedReading struct {
	Reading
	RiskScore   float64  `json:"risk_score"`   // [0, risk_score_max]
	CarbonScore float64  `json:"carbon_score"` // >= 0, uncapped
	Severity    Severity `json:"severity"`
	Anomaly     bool     `json:"anomaly"`
}

// PersistedEvent is an EnrichedReading with its store identity
type PersistedEvent struct {
	EnrichedReading
	ID         int64  `json:"id"`
	RawPayload string `json:"-"`
}

// AlertType names the condition that raised an alert
type AlertType string

const (
	AlertHighCO2      AlertType = "HIGH_CO2"
	AlertCriticalRisk AlertType = "CRITICAL_RISK"
)

// AlertSeverity is the urgency of an alert, distinct from reading Severity
type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Alert records that a persisted event crossed a threshold. EventID is a
// weak reference to the triggering event.
type Alert struct {
	ID        int64         `json:"id"`
	EventID   int64         `json:"event_id"`
	Type      AlertType     `json:"alert_type"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	Timestamp float64       `json:"timestamp"`
	Resolved  bool          `json:"resolved"`
}

// QueryLog is an audit row for one question answered by the RAG engine
type QueryLog struct {
	ID          int64   `json:"id"`
	RequestID   string  `json:"request_id"`
	Query       string  `json:"query"`
	Answer      string  `json:"answer"`
	SourceCount int     `json:"source_count"`
	LatencyMS   float64 `json:"latency_ms"`
	Timestamp   float64 `json:"timestamp"`
}

// Summary aggregates persisted events for the analytics endpoint
type Summary struct {
	EventCount    int64           `json:"event_count"`
	AverageCO224h *float64        `json:"average_co2_24h"`
	MaxRisk24h    *float64        `json:"max_risk_24h"`
	Latest        *PersistedEvent `json:"latest"`
}

func (r Reading) String() string {
	return fmt.Sprintf("%s@%.3f(%.1fppm)", r.Source, r.Timestamp, r.CO2PPM)
}
