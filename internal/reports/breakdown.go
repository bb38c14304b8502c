package reports

import (
	"context"
	"fmt"
	"sort"

	"github.com/bissquit/incident-pulse/internal/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// UnassignedKey is the sentinel bucket for incidents without a value in the
// grouped dimension.
const UnassignedKey = "unassigned"

// UnassignedLabel is the display label of the sentinel bucket.
const UnassignedLabel = "Unassigned"

// Bucket is one breakdown entry: a stable key, a display label and a count.
type Bucket struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// BreakdownEngine groups a filtered incident set by a dimension and counts.
type BreakdownEngine struct {
	repo     Repository
	collator *collate.Collator
}

// NewBreakdownEngine creates a new breakdown engine.
func NewBreakdownEngine(repo Repository) *BreakdownEngine {
	return &BreakdownEngine{
		repo:     repo,
		collator: collate.New(language.English),
	}
}

// GetBreakdown counts incidents per bucket of the groupBy dimension,
// ordered by count descending with label-ascending tie-break.
//
// Most dimensions partition the population exclusively: every incident lands
// in exactly one bucket (the sentinel "unassigned" one when the value is
// null). Category is the exception: it is many-to-many, so an incident with
// N categories contributes to all N buckets (fan-out). Do not "fix" this
// into an exclusive partition; the totals are expected to exceed the
// incident count for multi-category populations.
func (e *BreakdownEngine) GetBreakdown(ctx context.Context, filter Filter, groupBy GroupBy) ([]Bucket, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if !groupBy.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroupBy, groupBy)
	}

	incidents, err := e.repo.ListIncidents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	counts := make(map[string]int)
	for _, incident := range incidents {
		for _, key := range groupKeys(incident, groupBy) {
			counts[key]++
		}
	}

	labels, err := e.resolveLabels(ctx, groupBy, counts)
	if err != nil {
		return nil, err
	}

	buckets := make([]Bucket, 0, len(counts))
	for key, count := range counts {
		label, ok := labels[key]
		if !ok {
			label = key
		}
		buckets = append(buckets, Bucket{Key: key, Label: label, Count: count})
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return e.collator.CompareString(buckets[i].Label, buckets[j].Label) < 0
	})

	return buckets, nil
}

// groupKeys returns the bucket keys an incident contributes to. Exactly one
// key for single-valued dimensions, N keys for the category fan-out.
func groupKeys(incident *domain.Incident, groupBy GroupBy) []string {
	switch groupBy {
	case GroupBySeverity:
		return []string{string(incident.Severity)}
	case GroupByStatus:
		return []string{string(incident.Status)}
	case GroupByTeam:
		return []string{orUnassigned(incident.TeamID)}
	case GroupByService:
		return []string{orUnassigned(incident.ServiceID)}
	case GroupByAssignee:
		return []string{orUnassigned(incident.AssigneeID)}
	case GroupByCategory:
		if len(incident.CategoryIDs) == 0 {
			return []string{UnassignedKey}
		}
		return incident.CategoryIDs
	default:
		return nil
	}
}

func orUnassigned(id *string) string {
	if id == nil || *id == "" {
		return UnassignedKey
	}
	return *id
}

// resolveLabels looks up display names for entity-keyed dimensions.
// Severity and status buckets are labeled with the raw enum value.
func (e *BreakdownEngine) resolveLabels(ctx context.Context, groupBy GroupBy, counts map[string]int) (map[string]string, error) {
	labels := make(map[string]string, len(counts))
	if _, ok := counts[UnassignedKey]; ok {
		labels[UnassignedKey] = UnassignedLabel
	}

	ids := make([]string, 0, len(counts))
	for key := range counts {
		if key != UnassignedKey {
			ids = append(ids, key)
		}
	}

	switch groupBy {
	case GroupBySeverity, GroupByStatus:
		for _, id := range ids {
			labels[id] = id
		}
		return labels, nil
	case GroupByTeam:
		return e.mergeNames(ctx, labels, ids, e.repo.TeamNames)
	case GroupByService:
		return e.mergeNames(ctx, labels, ids, e.repo.ServiceNames)
	case GroupByAssignee:
		return e.mergeNames(ctx, labels, ids, e.repo.UserNames)
	case GroupByCategory:
		return e.mergeNames(ctx, labels, ids, e.repo.CategoryNames)
	default:
		return labels, nil
	}
}

func (e *BreakdownEngine) mergeNames(
	ctx context.Context,
	labels map[string]string,
	ids []string,
	lookup func(context.Context, []string) (map[string]string, error),
) (map[string]string, error) {
	if len(ids) == 0 {
		return labels, nil
	}
	names, err := lookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve labels: %w", err)
	}
	for id, name := range names {
		labels[id] = name
	}
	return labels, nil
}
