package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	Register()
	ReadingsIngested.WithLabelValues("api").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "greenflow_readings_ingested_total"))
	assert.True(t, strings.Contains(body, "greenflow_build_info"))
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(PipelineRecordsSkipped)
	PipelineRecordsSkipped.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PipelineRecordsSkipped))
}
