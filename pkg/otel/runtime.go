package otel

import (
	"time"

	hostmetrics "go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
)

// StartRuntimeMetrics starts Go runtime (memory, GC) and host (CPU, network)
// metric collection on the global meter provider.
func StartRuntimeMetrics(readInterval time.Duration) error {
	if readInterval <= 0 {
		readInterval = 30 * time.Second
	}

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(readInterval)); err != nil {
		return err
	}

	return hostmetrics.Start()
}
