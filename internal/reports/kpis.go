package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/incident-pulse/internal/domain"
)

// SLATargets maps severity to the resolve-duration target. The values are
// deployment configuration, not fixed by the engine.
type SLATargets map[domain.Severity]time.Duration

// DefaultSLATargets are used when the deployment configures none.
func DefaultSLATargets() SLATargets {
	return SLATargets{
		domain.SeveritySev1: 1 * time.Hour,
		domain.SeveritySev2: 4 * time.Hour,
		domain.SeveritySev3: 24 * time.Hour,
		domain.SeveritySev4: 72 * time.Hour,
	}
}

// Target returns the configured target for a severity, or false when the
// deployment defines none for it.
func (t SLATargets) Target(severity domain.Severity) (time.Duration, bool) {
	d, ok := t[severity]
	return d, ok
}

// MTTRStats holds mean-time-to-resolve statistics in seconds.
// All values are nil when no incident in scope has been resolved.
type MTTRStats struct {
	Avg    *float64 `json:"avg"`
	Median *float64 `json:"median"`
	P90    *float64 `json:"p90"`
}

// KPIs is the point-in-time metric set over a filtered incident population.
type KPIs struct {
	OpenCount        int       `json:"open_count"`
	ResolvedCount    int       `json:"resolved_count"`
	ClosedCount      int       `json:"closed_count"`
	MTTRSeconds      MTTRStats `json:"mttr_seconds"`
	SLACompliancePct *float64  `json:"sla_compliance_pct"`
}

// Aggregator computes KPI scalars from a filtered incident set.
type Aggregator struct {
	repo    Repository
	targets SLATargets
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(repo Repository, targets SLATargets) *Aggregator {
	if targets == nil {
		targets = DefaultSLATargets()
	}
	return &Aggregator{repo: repo, targets: targets}
}

// GetKPIs computes the KPI set for the filtered population.
func (a *Aggregator) GetKPIs(ctx context.Context, filter Filter) (*KPIs, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	incidents, err := a.repo.ListIncidents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	kpis := &KPIs{}
	durations := make([]float64, 0, len(incidents))
	slaMet := 0
	slaTotal := 0

	for _, incident := range incidents {
		if incident.Status.IsOpen() {
			kpis.OpenCount++
		}
		if incident.Status == domain.StatusClosed {
			kpis.ClosedCount++
		}
		// Resolved-or-later: a reopened incident keeps its first resolution
		// timestamp and still counts as resolved here.
		switch incident.Status {
		case domain.StatusResolved, domain.StatusReopened, domain.StatusClosed:
			if incident.ResolvedAt != nil {
				kpis.ResolvedCount++
			}
		}

		duration, ok := incident.ResolveDuration()
		if !ok {
			continue
		}
		durations = append(durations, duration.Seconds())

		if target, ok := a.targets.Target(incident.Severity); ok {
			slaTotal++
			if duration <= target {
				slaMet++
			}
		}
	}

	if len(durations) > 0 {
		avg := mean(durations)
		median := percentile(durations, 0.5)
		p90 := percentile(durations, 0.9)
		kpis.MTTRSeconds = MTTRStats{Avg: &avg, Median: &median, P90: &p90}
	}

	if slaTotal > 0 {
		pct := float64(slaMet) / float64(slaTotal) * 100
		kpis.SLACompliancePct = &pct
	}

	return kpis, nil
}
