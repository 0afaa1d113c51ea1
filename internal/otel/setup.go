// Package otel installs the OpenTelemetry providers and carries trace context through
// queue messages.
package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

const serviceNamespace = "judgestore"

// SetupOTelSDK installs the global trace, metric and log providers for `serviceName`.
// Call the returned shutdown even when an error is returned.
func SetupOTelSDK(
	ctx context.Context,
	serviceName string,
	useOTLP bool,
) (func(context.Context) error, error) {
	var stops []func(context.Context) error

	shutdown := func(ctx context.Context) error {
		var err error
		for _, stop := range stops {
			err = errors.Join(err, stop(ctx))
		}
		stops = nil
		return err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.namespace", serviceNamespace),
	)

	spans, err := spanExporter(ctx, useOTLP)
	if err != nil {
		return shutdown, errors.Join(err, shutdown(ctx))
	}
	tracerProvider := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.AlwaysSample())),
		trace.WithBatcher(spans),
	)
	stops = append(stops, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	metrics, err := metricExporter(ctx, useOTLP)
	if err != nil {
		return shutdown, errors.Join(err, shutdown(ctx))
	}
	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metrics)),
	)
	stops = append(stops, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	logs, err := logExporter(ctx, useOTLP)
	if err != nil {
		return shutdown, errors.Join(err, shutdown(ctx))
	}
	loggerProvider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(logs)),
	)
	stops = append(stops, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	return shutdown, nil
}

// OTLP exporters read their endpoint from the standard OTEL_EXPORTER_OTLP_* variables

//nolint:ireturn // the sdk takes the exporter interface
func spanExporter(ctx context.Context, useOTLP bool) (trace.SpanExporter, error) {
	if useOTLP {
		return otlptracegrpc.New(ctx)
	}
	return stdouttrace.New()
}

//nolint:ireturn // the sdk takes the exporter interface
func metricExporter(ctx context.Context, useOTLP bool) (metric.Exporter, error) {
	if useOTLP {
		return otlpmetricgrpc.New(ctx)
	}
	return stdoutmetric.New()
}

//nolint:ireturn // the sdk takes the exporter interface
func logExporter(ctx context.Context, useOTLP bool) (log.Exporter, error) {
	if useOTLP {
		return otlploggrpc.New(ctx)
	}
	return stdoutlog.New()
}
