package saga

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const sagaTracerName = "snapbuy.saga"

const (
	spanRun        = "saga.run"
	spanStage      = "saga.stage"
	spanCompensate = "saga.compensate"
	spanCheckout   = "saga.checkout"
)

func sagaTracer() trace.Tracer {
	return otel.Tracer(sagaTracerName)
}
