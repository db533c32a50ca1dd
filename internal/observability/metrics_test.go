package observability

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordAPIRequestLabelsTransportFailures(t *testing.T) {
	RecordAPIRequest("metrics test", 0, 10*time.Millisecond)
	RecordAPIRequest("metrics test", 200, 20*time.Millisecond)

	metric := &dto.Metric{}
	require.NoError(t, apiRequestCounter.WithLabelValues("metrics test", "error").Write(metric))
	require.Equal(t, float64(1), metric.GetCounter().GetValue())

	metric = &dto.Metric{}
	require.NoError(t, apiRequestCounter.WithLabelValues("metrics test", "200").Write(metric))
	require.Equal(t, float64(1), metric.GetCounter().GetValue())
}

func TestRecordRefreshIgnoresZeroTime(t *testing.T) {
	ts := time.Date(2025, 10, 27, 20, 0, 0, 0, time.UTC)
	RecordRefresh(ts)
	RecordRefresh(time.Time{})

	metric := &dto.Metric{}
	require.NoError(t, lastRefreshGauge.Write(metric))
	require.Equal(t, float64(ts.Unix()), metric.GetGauge().GetValue())
}
