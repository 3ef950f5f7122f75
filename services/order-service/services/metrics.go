package services

import (
	"context"
	"time"
)

const serviceName = "order-service"

// MetricsRecorder is the subset of the CloudWatch metrics client the services use.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error
	IsEnabled() bool
}

// recordAsync runs fn in the background with its own timeout so metrics never delay a response.
func recordAsync(m MetricsRecorder, fn func(ctx context.Context, m MetricsRecorder, dims map[string]string)) {
	if m == nil || !m.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		fn(ctx, m, map[string]string{"Service": serviceName})
	}()
}
