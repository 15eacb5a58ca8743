package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

var setupTestEnvironments = map[string]bool{}

// sets up telemetry in a testing environment, ensuring that it isn't
// set up more than once. Unlike Setup, it installs providers without
// exporters so tests do not need a collector endpoint.
func SetupForTesting(serviceName string) func() {
	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	InitSlog(true)
	otel.SetTracerProvider(trace.NewTracerProvider())
	otel.SetMeterProvider(metric.NewMeterProvider())

	return func() {}
}
