package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by this module.
const TracerName = "netplay"

// Tracer returns the module tracer from the global provider. Without an SDK
// installed the provider is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
