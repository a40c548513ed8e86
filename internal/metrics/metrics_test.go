package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	before := testutil.ToFloat64(requests.WithLabelValues("visualize", OutcomeOK))
	ObserveRequest("visualize", OutcomeOK, 5*time.Millisecond)
	ObserveRequest("visualize", OutcomeOK, 7*time.Millisecond)
	assert.Equal(t, before+2, testutil.ToFloat64(requests.WithLabelValues("visualize", OutcomeOK)))
}

func TestObserveStep(t *testing.T) {
	before := testutil.ToFloat64(steps.WithLabelValues("step_over", "false"))
	ObserveStep("step_over", false)
	assert.Equal(t, before+1, testutil.ToFloat64(steps.WithLabelValues("step_over", "false")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveExecution(time.Millisecond)
	ObserveModel(4)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "circinspect_program_execution_seconds")
	assert.Contains(t, string(body), "circinspect_commands_per_model")
}
