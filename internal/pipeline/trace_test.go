package pipeline

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/stretchr/testify/require"
)

func TestRunIsTraced(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	prevTracer := otel.GetTracerProvider()
	prevMeter := otel.GetMeterProvider()
	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
	})

	failing := &spy{name: "login", result: Fail("INVALID_PASSWORD", "")}
	closing := &spy{name: "close"}
	outcome := newRunner().Run(context.Background(), Options{}, []Adapter{failing.adapter()}, []Adapter{closing.adapter()})
	require.False(t, outcome.Success)

	var names []string
	var runEvents []string
	for _, span := range spans.Ended() {
		names = append(names, span.Name())
		if span.Name() == "pipeline.run" {
			for _, event := range span.Events() {
				runEvents = append(runEvents, event.Name)
			}
		}
	}
	require.ElementsMatch(t, []string{"adapter login", "adapter close", "pipeline.run"}, names)
	require.Equal(t, []string{
		string(STATE_INIT),
		string(STATE_VALIDATING_STRUCTURE),
		string(STATE_RUNNING_MAIN),
		string(STATE_MAIN_FAILED),
		string(STATE_RUNNING_CLEANUP),
		string(STATE_DONE),
	}, runEvents)

	var metrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &metrics))
	var total int64
	for _, scope := range metrics.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "pipeline.adapter.executions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, point := range sum.DataPoints {
				total += point.Value
			}
		}
	}
	require.Equal(t, int64(2), total)
}
