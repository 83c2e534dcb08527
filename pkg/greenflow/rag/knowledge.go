package rag

// Document is one knowledge base passage
type Document struct {
	ID      string
	Content string
}

// ThresholdsDocumentID identifies the generated classification reference
const ThresholdsDocumentID = "thresholds"

// SeedDocuments returns the built-in environmental knowledge plus a
// document describing the live classification rules.
func SeedDocuments(thresholdsReference string) []Document {
	docs := []Document{
		{
			ID: "co2-basics",
			Content: "Carbon dioxide (CO2) is a greenhouse gas. Safe indoor levels are below " +
				"1000 ppm. Outdoor baseline is ~420 ppm. Levels above 1000 ppm cause " +
				"cognitive impairment; above 5000 ppm is immediately dangerous.",
		},
		{
			ID: "risk-scoring",
			Content: "GreenFlow AI computes a risk score as min(co2_ppm / 500, 1.0). " +
				"A score of 0.0 is safe; 1.0 is critical. Scores of 0.9 and above trigger " +
				"critical risk alerts and call for immediate ventilation and activity reduction.",
		},
		{
			ID: "climate-impact",
			Content: "India emits approximately 2.88 billion tonnes of CO2 per year (~7% of " +
				"global emissions). Industrial zones, traffic corridors, and agricultural " +
				"burning are primary sources. Real-time monitoring helps target interventions.",
		},
		{
			ID: "green-actions",
			Content: "Effective carbon-reduction actions include switching to renewable energy, " +
				"improving public transportation, reforestation, and circular manufacturing. " +
				"Each 1% reduction in industrial CO2 prevents ~2.5 MT of annual emissions.",
		},
		{
			ID: "greenflow-system",
			Content: "GreenFlow AI is a real-time environmental monitoring system. " +
				"It ingests sensor data, computes risk scores, raises alerts, and serves " +
				"AI-powered recommendations over HTTP, server-sent events and WebSocket.",
		},
	}
	if thresholdsReference != "" {
		docs = append(docs, Document{ID: ThresholdsDocumentID, Content: thresholdsReference})
	}
	return docs
}
