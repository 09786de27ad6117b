package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestStartSpan_RecordsAttributesAndErrors(t *testing.T) {
	rec := recordSpans(t)

	span, ctx := StartSpan(context.Background(), "FeedService.FetchPage", attribute.Int("feed.limit", 25))
	require.NotNil(t, ctx)
	span.AddAttributes(attribute.Int("feed.returned", 3))
	span.SetError(nil)
	span.SetError(errors.New("store down"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "FeedService.FetchPage", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.Int("feed.limit", 25))
	assert.Contains(t, ended[0].Attributes(), attribute.Int("feed.returned", 3))
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Len(t, ended[0].Events(), 1)
}

func TestSpan_NilSafe(t *testing.T) {
	var s *Span
	assert.NotPanics(t, func() {
		s.AddAttributes(attribute.Bool("x", true))
		s.SetError(errors.New("x"))
		s.End()
	})
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "breaksphere-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	shutdown, err = InitTracing(TracingConfig{ServiceName: "breaksphere-test", Enabled: true, Exporter: "none", SamplerRatio: 0.5})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Contains(t, sampler(0.25).Description(), "ParentBased")
}
