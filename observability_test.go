package filestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingMetrics struct {
	histograms []string
	records    []string
}

func (r *recordingMetrics) NewHistogram(name, _ string, _ ...float64) {
	r.histograms = append(r.histograms, name)
}

func (r *recordingMetrics) RecordHistogram(_ context.Context, name string, _ float64, labels ...string) {
	r.records = append(r.records, name)
	r.records = append(r.records, labels...)
}

func TestObserveOperation(t *testing.T) {
	status := StatusSuccess
	msg := "done"

	metrics := &recordingMetrics{}

	ObserveOperation(&OperationObservability{
		Context:   context.Background(),
		Metrics:   metrics,
		Operation: "SAVE",
		Location:  "bucket",
		Provider:  "GCS",
		StartTime: time.Now(),
		Status:    &status,
		Message:   &msg,
	})

	assert.Contains(t, metrics.records, AppFileStats)
	assert.Contains(t, metrics.records, "SAVE")
	assert.Contains(t, metrics.records, "GCS")
}

func TestObserveOperation_NilCollaborators(t *testing.T) {
	status := StatusError

	// No logger, no metrics: must not panic.
	ObserveOperation(&OperationObservability{
		Operation: "OPEN",
		StartTime: time.Now(),
		Status:    &status,
	})
}

func TestDefaultHistogramBuckets(t *testing.T) {
	assert.NotEmpty(t, DefaultHistogramBuckets())
}
