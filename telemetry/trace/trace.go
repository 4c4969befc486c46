//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package trace provides the tracer used by the search agent and an OTLP
// exporter setup.
package trace

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// InstrumentationName is the instrumentation scope of the search agent tracer.
	InstrumentationName = "trpc.group/trpc-go/trpc-search-agent-go"

	// ProtocolGRPC exports spans over OTLP/gRPC.
	ProtocolGRPC = "grpc"
	// ProtocolHTTP exports spans over OTLP/HTTP.
	ProtocolHTTP = "http"

	defaultServiceName = "search-agent"
)

// Tracer is the tracer used for pipeline and stage spans. It is a no-op
// until Start installs an exporter.
var Tracer trace.Tracer = noop.NewTracerProvider().Tracer(InstrumentationName)

type options struct {
	tracesEndpoint    string
	tracesEndpointURL string
	protocol          string
	serviceName       string
	headers           map[string]string
}

// Option configures Start.
type Option func(*options)

// WithEndpoint sets the collector host:port. OTEL_EXPORTER_OTLP_TRACES_ENDPOINT
// and OTEL_EXPORTER_OTLP_ENDPOINT are consulted when it is not set.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.tracesEndpoint = endpoint }
}

// WithEndpointURL sets a full collector URL, including a custom path for HTTP.
// It takes precedence over WithEndpoint.
func WithEndpointURL(endpointURL string) Option {
	return func(o *options) { o.tracesEndpointURL = endpointURL }
}

// WithProtocol selects "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithHeaders sets headers sent with every export request.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) { o.headers = headers }
}

// Start installs an OTLP trace exporter and returns a cleanup function that
// flushes and shuts it down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := &options{
		protocol:    ProtocolGRPC,
		serviceName: defaultServiceName,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracesEndpoint == "" {
		o.tracesEndpoint = tracesEndpoint(o.protocol)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(o.serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch o.protocol {
	case ProtocolHTTP:
		exporter, err = newHTTPExporter(ctx, o)
	default:
		exporter, err = newGRPCExporter(ctx, o)
	}
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	Tracer = tp.Tracer(InstrumentationName)

	return func() error {
		return tp.Shutdown(context.Background())
	}, nil
}

func newGRPCExporter(ctx context.Context, o *options) (sdktrace.SpanExporter, error) {
	grpcOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(o.tracesEndpoint),
		otlptracegrpc.WithInsecure(),
	}
	if o.tracesEndpointURL != "" {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpointURL(o.tracesEndpointURL))
	}
	if len(o.headers) > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithHeaders(o.headers))
	}
	exp, err := otlptracegrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC trace exporter: %w", err)
	}
	return exp, nil
}

func newHTTPExporter(ctx context.Context, o *options) (sdktrace.SpanExporter, error) {
	endpoint := o.tracesEndpoint
	urlPath := ""
	if o.tracesEndpointURL != "" {
		var err error
		endpoint, urlPath, err = parseEndpointURL(o.tracesEndpointURL)
		if err != nil {
			return nil, err
		}
	}
	httpOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	}
	if urlPath != "" {
		httpOpts = append(httpOpts, otlptracehttp.WithURLPath(urlPath))
	}
	if len(o.headers) > 0 {
		httpOpts = append(httpOpts, otlptracehttp.WithHeaders(o.headers))
	}
	exp, err := otlptracehttp.New(ctx, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP trace exporter: %w", err)
	}
	return exp, nil
}

// parseEndpointURL splits a collector URL into host:port and path.
func parseEndpointURL(raw string) (endpoint, urlPath string, err error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid endpoint url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", "", errors.New("endpoint url has no host")
	}
	urlPath = u.Path
	if urlPath == "" {
		urlPath = "/"
	}
	return u.Host, urlPath, nil
}

func tracesEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); endpoint != "" {
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
