package server

import "github.com/elevated-systems/greenflow/pkg/greenflow/types"

// Demo ranges used when no event has been persisted yet
const (
	riskDemoMin           = 310.0
	riskDemoMax           = 480.0
	recommendationDemoMin = 340.0
	recommendationDemoMax = 420.0
)

var riskMessages = map[types.Severity]string{
	types.SeveritySafe:     "CO2 levels are within safe range. No action required.",
	types.SeverityWarning:  "CO2 is elevated. Consider improving ventilation.",
	types.SeverityDanger:   "Dangerous CO2 level detected. Take immediate action.",
	types.SeverityCritical: "CRITICAL: CO2 is at hazardous levels. Evacuate if necessary.",
}

type recommendation struct {
	Title          string   `json:"title"`
	Recommendation string   `json:"recommendation"`
	Actions        []string `json:"actions"`
	Urgency        string   `json:"urgency"`
}

var recommendations = map[types.Severity]recommendation{
	types.SeveritySafe: {
		Title: "Environment is Safe",
		Recommendation: "Current CO2 levels are within the safe range. This is a good time " +
			"to perform preventive maintenance on air quality systems and maintain " +
			"vegetation coverage around your facility.",
		Actions: []string{
			"Monitor CO2 levels hourly.",
			"Maintain air filtration systems.",
			"Plant trees and increase green cover in the area.",
			"Document baseline readings for trend analysis.",
		},
		Urgency: "low",
	},
	types.SeverityWarning: {
		Title: "Elevated CO2 - Take Precautions",
		Recommendation: "CO2 levels are moderately elevated. Increase ventilation and reduce " +
			"activities that generate significant emissions. Notify your environmental " +
			"compliance team.",
		Actions: []string{
			"Increase ventilation rate by 20-30%.",
			"Reduce high-emission activities during peak hours.",
			"Alert the environmental management team.",
			"Check air filtration systems for blockages.",
			"Consider switching to cleaner energy sources.",
		},
		Urgency: "medium",
	},
	types.SeverityDanger: {
		Title: "Dangerous CO2 Level - Act Now",
		Recommendation: "CO2 concentration is at dangerous levels. Immediate action is required to " +
			"protect occupants and comply with environmental regulations. Engage your " +
			"emergency protocol.",
		Actions: []string{
			"IMMEDIATELY increase ventilation to maximum.",
			"Suspend high-emission operations.",
			"Activate emergency air quality protocol.",
			"Notify regulatory authorities if threshold exceeds legal limit.",
			"Evacuate sensitive populations (children, elderly) from exposure areas.",
			"Engage backup air purification systems.",
		},
		Urgency: "high",
	},
	types.SeverityCritical: {
		Title: "CRITICAL: Emergency Response Required",
		Recommendation: "CO2 is at hazardous levels posing an immediate risk to human health " +
			"and ecosystems. Activate full emergency response and report to national " +
			"environmental agencies immediately.",
		Actions: []string{
			"EVACUATE the affected zone immediately.",
			"Shut down all emission sources.",
			"Activate NDMA / CPCB emergency reporting protocol.",
			"Deploy mobile air purification units.",
			"Initiate mandatory incident reporting.",
			"Call emergency environmental response team.",
			"Issue public health advisory.",
		},
		Urgency: "critical",
	},
}
