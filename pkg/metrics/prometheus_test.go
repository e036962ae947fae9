package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordEpochLoss("train", 0.5)
	r.RecordEpochLoss("valid", 0.75)
	r.RecordEpochLoss("train", 0.25)
	r.RecordBatch("train", 0.01)
	r.RecordBatch("train", 0.02)
	r.RecordError("data_quality")
	r.RecordExamples("train", 70)

	assert.Equal(t, 0.25, testutil.ToFloat64(r.epochLoss.WithLabelValues("train")))
	assert.Equal(t, 0.75, testutil.ToFloat64(r.epochLoss.WithLabelValues("valid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.epochsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.batchesTotal.WithLabelValues("train")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("data_quality")))
	assert.Equal(t, 70.0, testutil.ToFloat64(r.examples.WithLabelValues("train")))
}
