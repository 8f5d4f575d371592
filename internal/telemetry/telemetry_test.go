package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/projectatlas/astaauth"
)

type staticSource struct{ snap astaauth.MetricsSnapshot }

func (s staticSource) MetricsSnapshot() astaauth.MetricsSnapshot { return s.snap }
func (s staticSource) AuditDropped() uint64                      { return 0 }

func TestStartRequiresEndpoint(t *testing.T) {
	_, err := Start(context.Background(), Config{}, staticSource{})
	require.Error(t, err)
}

func TestStartWithReaderCollectsEngineMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	src := staticSource{snap: astaauth.MetricsSnapshot{
		Counters: map[astaauth.MetricID]uint64{astaauth.MetricTokenIssued: 7},
	}}

	p, err := StartWithReader(Config{ServiceName: "astaauth-test", Environment: "test"}, reader, src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	name, ok := rm.Resource.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "astaauth-test", name.AsString())

	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "astaauth_token_issued_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.EqualValues(t, 7, sum.DataPoints[0].Value)
			found = true
		}
	}
	assert.True(t, found, "token issued counter not exported")
}

func TestNilPipelineShutdown(t *testing.T) {
	var p *Pipeline
	assert.NoError(t, p.Shutdown(context.Background()))
}
