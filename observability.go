package filestore

import (
	"context"
	"time"
)

// AppFileStats is the single metric name for all storage operations across providers.
const AppFileStats = "app_file_stats"

// StorageMetrics is the metrics interface storage backends record into.
type StorageMetrics interface {
	// NewHistogram creates a new histogram with the given name, description, and buckets.
	NewHistogram(name, desc string, buckets ...float64)

	// RecordHistogram records a value in the histogram with the given name and labels.
	RecordHistogram(ctx context.Context, name string, value float64, labels ...string)
}

// DefaultHistogramBuckets returns the standard bucket sizes for storage operations.
func DefaultHistogramBuckets() []float64 {
	return []float64{0.1, 1, 10, 100, 1000}
}

// OperationObservability carries the parameters needed for logging and
// metrics recording of a single operation.
type OperationObservability struct {
	Context   context.Context
	Logger    Logger
	Metrics   StorageMetrics
	Operation string
	Location  string
	Provider  string
	StartTime time.Time
	Status    *string
	Message   *string
}

// ObserveOperation handles both logging and metrics recording for one
// completed operation. Backends call it from a deferred closure so the
// status and message pointers reflect the final outcome.
func ObserveOperation(params *OperationObservability) {
	duration := time.Since(params.StartTime).Microseconds()

	log := &OperationLog{
		Operation: params.Operation,
		Duration:  duration,
		Status:    params.Status,
		Location:  params.Location,
		Provider:  params.Provider,
		Message:   params.Message,
	}

	if params.Logger != nil {
		params.Logger.Debug(log)
	}

	if params.Metrics != nil {
		params.Metrics.RecordHistogram(
			params.Context,
			AppFileStats,
			float64(duration),
			"type", params.Operation,
			"status", cleanString(params.Status),
			"provider", params.Provider,
		)
	}
}
