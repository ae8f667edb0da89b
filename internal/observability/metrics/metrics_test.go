package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesStripsDisallowedKeys(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("result", "valid"),
		attribute.String("user_id", "u-123"),
		attribute.String("outcome", "success"),
	)

	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("result"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "unknown", statusClass(0))
}

func TestNewInstrumentsWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "edgegate"}, noop.NewMeterProvider())
	require.NoError(t, err)

	// Recording against noop instruments must be a no-op, not a panic.
	ctx := context.Background()
	m.RecordSessionVerification(ctx, "valid")
	m.RecordGatewayDecision(ctx, "redirect", "guest_on_protected")
	m.RecordTokenRefresh(ctx, "success")
	m.RecordProxyRequest(ctx, 200)
	m.RecordBreakerTransition(ctx, "open")
	m.RecordRateLimitDenied(ctx, "/api/contacts")
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.RecordSessionVerification(context.Background(), "valid")
	m.RecordProxyRequest(context.Background(), 200)
}
