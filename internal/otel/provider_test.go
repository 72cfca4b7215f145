package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	globalotel "go.opentelemetry.io/otel"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestEnabledRequiresSink(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "test"})
	require.Error(t, err)
}

func TestWriterProviderExportsOnFlush(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:        true,
		ServiceName:    "test",
		ExportInterval: time.Hour,
		MetricWriter:   &buf,
	})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	meter := globalotel.Meter("test")
	counter, err := meter.Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, p.Flush(context.Background()))
	assert.Contains(t, buf.String(), "test.counter")
}
