package telemetry

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/m-mizutani/kristal"

// Tracer returns the tracer used for agent calls. It is a no-op until Init
// installs a provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

type instruments struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

var (
	instrumentsOnce sync.Once
	inst            instruments
)

func loadInstruments() instruments {
	instrumentsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		// Errors only occur for invalid instrument names; the no-op
		// instruments returned alongside are safe to use.
		inst.calls, _ = meter.Int64Counter("kristal.agent.calls",
			metric.WithDescription("Number of calls to the agent service"))
		inst.duration, _ = meter.Float64Histogram("kristal.agent.duration",
			metric.WithDescription("Latency of calls to the agent service"),
			metric.WithUnit("ms"))
	})
	return inst
}

// RecordCall records one agent call with its outcome
func RecordCall(ctx context.Context, operation string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)

	i := loadInstruments()
	i.calls.Add(ctx, 1, attrs)
	i.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

// Init installs trace and metric providers exporting to w. The returned
// function flushes and shuts both down.
func Init(ctx context.Context, w io.Writer) (func(context.Context) error, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "kristal"),
	)

	traceExporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create trace exporter")
	}

	metricExporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(w),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create metric exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(10*time.Second))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}
	return shutdown, nil
}
