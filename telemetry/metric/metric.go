//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metric records per-stage counters and durations of the search
// pipeline with OpenTelemetry.
package metric

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Meter and metric names.
const (
	MeterNamePipeline = "search_agent.pipeline"

	MetricStageRuns     = "search_agent.stage.runs"
	MetricStageFailures = "search_agent.stage.failures"
	MetricStageDuration = "search_agent.stage.duration"

	// AttrStage is the attribute carrying the stage name.
	AttrStage = "search_agent.stage"
	// AttrErrorKind is the attribute carrying the failure kind.
	AttrErrorKind = "search_agent.error.kind"

	// ProtocolGRPC exports metrics over OTLP/gRPC.
	ProtocolGRPC = "grpc"
	// ProtocolHTTP exports metrics over OTLP/HTTP.
	ProtocolHTTP = "http"

	defaultServiceName = "search-agent"
)

var (
	meterProvider metric.MeterProvider

	stageRuns     metric.Int64Counter
	stageFailures metric.Int64Counter
	stageDuration metric.Float64Histogram
)

func init() {
	// The noop provider never fails to create instruments.
	_ = InitMeterProvider(noop.NewMeterProvider())
}

// InitMeterProvider creates the pipeline instruments on mp.
func InitMeterProvider(mp metric.MeterProvider) error {
	if mp == nil {
		return fmt.Errorf("meter provider is nil")
	}
	meter := mp.Meter(MeterNamePipeline)
	runs, err := meter.Int64Counter(
		MetricStageRuns,
		metric.WithDescription("Total number of stage executions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricStageRuns, err)
	}
	failures, err := meter.Int64Counter(
		MetricStageFailures,
		metric.WithDescription("Total number of failed stage executions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricStageFailures, err)
	}
	duration, err := meter.Float64Histogram(
		MetricStageDuration,
		metric.WithDescription("Duration of stage execution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", MetricStageDuration, err)
	}
	meterProvider, stageRuns, stageFailures, stageDuration = mp, runs, failures, duration
	return nil
}

// GetMeterProvider returns the meter provider the instruments were created on.
func GetMeterProvider() metric.MeterProvider {
	return meterProvider
}

// RecordStage records one stage execution. An empty errorKind means success.
func RecordStage(ctx context.Context, stage string, duration time.Duration, errorKind string) {
	attrs := metric.WithAttributes(attribute.String(AttrStage, stage))
	stageRuns.Add(ctx, 1, attrs)
	stageDuration.Record(ctx, duration.Seconds(), attrs)
	if errorKind != "" {
		stageFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrStage, stage),
			attribute.String(AttrErrorKind, errorKind),
		))
	}
}

// Option configures the meter provider.
type Option func(*options)

type options struct {
	metricsEndpoint string
	protocol        string
	serviceName     string
}

// WithEndpoint sets the collector host:port. OTEL_EXPORTER_OTLP_METRICS_ENDPOINT
// and OTEL_EXPORTER_OTLP_ENDPOINT are consulted when it is not set.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.metricsEndpoint = endpoint }
}

// WithProtocol selects "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// NewMeterProvider creates an SDK meter provider exporting over OTLP.
func NewMeterProvider(ctx context.Context, opts ...Option) (*sdkmetric.MeterProvider, error) {
	o := &options{
		protocol:    ProtocolGRPC,
		serviceName: defaultServiceName,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metricsEndpoint == "" {
		o.metricsEndpoint = metricsEndpoint(o.protocol)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(o.serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch o.protocol {
	case ProtocolHTTP:
		exporter, err = otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(o.metricsEndpoint),
			otlpmetrichttp.WithInsecure())
	default:
		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(o.metricsEndpoint),
			otlpmetricgrpc.WithInsecure())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	), nil
}

// Start installs an OTLP meter provider globally and binds the pipeline
// instruments to it.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	mp, err := NewMeterProvider(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := InitMeterProvider(mp); err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp)
	return func() error {
		return mp.Shutdown(context.Background())
	}, nil
}

func metricsEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	switch protocol {
	case ProtocolHTTP:
		return "localhost:4318"
	default:
		return "localhost:4317"
	}
}
