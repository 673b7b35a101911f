package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestTracer(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		tr, err := New(false, nil)
		require.NoError(t, err)

		ctx, span := tr.Start(context.Background(), "round.tick")
		span.End()

		assert.False(t, tr.Enabled())
		_, _, ok := TraceFields(ctx)
		assert.False(t, ok)
		assert.NoError(t, tr.Shutdown(context.Background()))
	})

	t.Run("ExportsSpans", func(t *testing.T) {
		// Arrange
		var buf bytes.Buffer
		tr, err := New(true, &buf)
		require.NoError(t, err)

		// Act
		ctx, span := tr.Start(context.Background(), "round.tick")
		span.SetAttributes(attribute.String("round.id", "round-1"))
		traceID, spanID, ok := TraceFields(ctx)
		span.End()
		require.NoError(t, tr.Shutdown(context.Background()))

		// Assert
		assert.True(t, tr.Enabled())
		require.True(t, ok)
		assert.Len(t, traceID, 32)
		assert.Len(t, spanID, 16)
		assert.Contains(t, buf.String(), "round.tick")
		assert.Contains(t, buf.String(), "round-1")
	})
}
