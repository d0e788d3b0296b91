package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStage(t *testing.T) {
	before := testutil.CollectAndCount(StageDuration)
	ObserveStage("metrics-test-stage", time.Now(), nil)
	ObserveStage("metrics-test-stage", time.Now(), errors.New("boom"))
	assert.Equal(t, before+2, testutil.CollectAndCount(StageDuration))
}

func TestArtifactValidationsCounter(t *testing.T) {
	c := ArtifactValidations.WithLabelValues("docx", "failed", "metrics-test")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
