package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSourceCheck(t *testing.T) {
	before := testutil.ToFloat64(SourceChecks.WithLabelValues("metrics-test", OutcomeFound))

	RecordSourceCheck("metrics-test", OutcomeFound, 250*time.Millisecond)

	after := testutil.ToFloat64(SourceChecks.WithLabelValues("metrics-test", OutcomeFound))
	assert.Equal(t, before+1, after)
	assert.Equal(t, 1, testutil.CollectAndCount(SourceCheckDuration, "bookhound_source_check_duration_seconds"))
}
