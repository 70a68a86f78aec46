package metrics_test

import (
	"errors"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/consensuserrors"
	"github.com/driveplatform/drive/pkg/metrics"
)

func TestRecordAppliedIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	r.RecordApplied()
	r.RecordApplied()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "drive_transitions_applied_total" {
			found = true
			require.Equal(t, float64(2), mf.Metric[0].GetCounter().GetValue())
		}
	}
	require.True(t, found)
}

func TestRecordRejectedLabelsByCategory(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	r.RecordRejected(consensuserrors.State(consensuserrors.CodeNonceStale, "stale"))
	r.RecordRejected(consensuserrors.Fee(consensuserrors.CodeInsufficientBalance, "broke"))
	r.RecordRejected(errors.New("plain error, falls under unknown category"))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var rejected *dto.MetricFamily
	for _, mf := range mfs {
		if mf.GetName() == "drive_transitions_rejected_total" {
			rejected = mf
		}
	}
	require.NotNil(t, rejected)
	require.Len(t, rejected.Metric, 3)
}

func TestCacheHitMissCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	r.RecordCacheHit()
	r.RecordCacheHit()
	r.RecordCacheMiss()

	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() == "drive_contract_cache_hits_total" || mf.GetName() == "drive_contract_cache_misses_total" {
			values[mf.GetName()] = mf.Metric[0].GetCounter().GetValue()
		}
	}
	require.Equal(t, float64(2), values["drive_contract_cache_hits_total"])
	require.Equal(t, float64(1), values["drive_contract_cache_misses_total"])
}
