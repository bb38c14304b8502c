package reports

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_GetKPIs_MTTR(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &mockRepository{
		incidents: []*domain.Incident{
			resolvedIncident("a", domain.SeveritySev2, base, 1800*time.Second),
			resolvedIncident("b", domain.SeveritySev2, base, 7200*time.Second),
			resolvedIncident("c", domain.SeveritySev2, base, 14400*time.Second),
		},
	}
	aggregator := NewAggregator(repo, nil)

	kpis, err := aggregator.GetKPIs(context.Background(), Filter{})
	require.NoError(t, err)

	require.NotNil(t, kpis.MTTRSeconds.Avg)
	require.NotNil(t, kpis.MTTRSeconds.Median)
	require.NotNil(t, kpis.MTTRSeconds.P90)
	assert.InDelta(t, 7800, *kpis.MTTRSeconds.Avg, 1e-9)
	assert.InDelta(t, 7200, *kpis.MTTRSeconds.Median, 1e-9)
	assert.InDelta(t, 12960, *kpis.MTTRSeconds.P90, 1e-9)
	assert.Equal(t, 3, kpis.ResolvedCount)
}

func TestAggregator_GetKPIs_EmptyPopulation(t *testing.T) {
	aggregator := NewAggregator(&mockRepository{}, nil)

	kpis, err := aggregator.GetKPIs(context.Background(), Filter{})
	require.NoError(t, err)

	assert.Zero(t, kpis.OpenCount)
	assert.Zero(t, kpis.ResolvedCount)
	assert.Zero(t, kpis.ClosedCount)
	assert.Nil(t, kpis.MTTRSeconds.Avg)
	assert.Nil(t, kpis.MTTRSeconds.Median)
	assert.Nil(t, kpis.MTTRSeconds.P90)
	assert.Nil(t, kpis.SLACompliancePct)
}

func TestAggregator_GetKPIs_StatusCounts(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	closed := resolvedIncident("closed", domain.SeveritySev3, base, time.Hour)
	closed.Status = domain.StatusClosed
	closed.ClosedAt = timePtr(base.Add(2 * time.Hour))

	// Reopened after a resolution: keeps its first resolution timestamp and
	// still counts as resolved.
	reopened := resolvedIncident("reopened", domain.SeveritySev3, base, time.Hour)
	reopened.Status = domain.StatusReopened

	// Reopened and back in progress: no longer counts as resolved even though
	// the milestone timestamp survives.
	backInProgress := resolvedIncident("in-progress-again", domain.SeveritySev3, base, time.Hour)
	backInProgress.Status = domain.StatusInProgress

	repo := &mockRepository{
		incidents: []*domain.Incident{
			{ID: "new", Status: domain.StatusNew, Severity: domain.SeveritySev3, CreatedAt: base},
			{ID: "hold", Status: domain.StatusOnHold, Severity: domain.SeveritySev3, CreatedAt: base},
			resolvedIncident("resolved", domain.SeveritySev3, base, time.Hour),
			closed,
			reopened,
			backInProgress,
		},
	}
	aggregator := NewAggregator(repo, nil)

	kpis, err := aggregator.GetKPIs(context.Background(), Filter{})
	require.NoError(t, err)

	// new, hold, reopened and in-progress-again are open.
	assert.Equal(t, 4, kpis.OpenCount)
	assert.Equal(t, 3, kpis.ResolvedCount)
	assert.Equal(t, 1, kpis.ClosedCount)
}

func TestAggregator_GetKPIs_SLACompliance(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &mockRepository{
		incidents: []*domain.Incident{
			// sev1 target is 1h.
			resolvedIncident("fast", domain.SeveritySev1, base, 30*time.Minute),
			resolvedIncident("late", domain.SeveritySev1, base, 2*time.Hour),
			// sev2 target is 4h, met exactly on the boundary.
			resolvedIncident("boundary", domain.SeveritySev2, base, 4*time.Hour),
			// Unresolved incidents contribute nothing.
			{ID: "open", Status: domain.StatusNew, Severity: domain.SeveritySev1, CreatedAt: base},
		},
	}
	aggregator := NewAggregator(repo, nil)

	kpis, err := aggregator.GetKPIs(context.Background(), Filter{})
	require.NoError(t, err)

	require.NotNil(t, kpis.SLACompliancePct)
	assert.InDelta(t, 100.0*2/3, *kpis.SLACompliancePct, 1e-9)
}

func TestAggregator_GetKPIs_CustomTargets(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &mockRepository{
		incidents: []*domain.Incident{
			resolvedIncident("a", domain.SeveritySev4, base, 10*time.Minute),
		},
	}
	// No target configured for sev4 at all.
	aggregator := NewAggregator(repo, SLATargets{domain.SeveritySev1: time.Hour})

	kpis, err := aggregator.GetKPIs(context.Background(), Filter{})
	require.NoError(t, err)

	assert.Nil(t, kpis.SLACompliancePct)
	require.NotNil(t, kpis.MTTRSeconds.Avg)
	assert.InDelta(t, 600, *kpis.MTTRSeconds.Avg, 1e-9)
}

func TestAggregator_GetKPIs_InvalidFilter(t *testing.T) {
	aggregator := NewAggregator(&mockRepository{}, nil)

	from := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := aggregator.GetKPIs(context.Background(), Filter{From: &from, To: &to})
	assert.ErrorIs(t, err, ErrInvalidRange)

	bad := domain.Severity("sev9")
	_, err = aggregator.GetKPIs(context.Background(), Filter{Severity: &bad})
	assert.ErrorIs(t, err, ErrInvalidSeverity)
}
