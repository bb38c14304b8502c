package reports

import (
	"context"
	"fmt"
	"time"
)

// Point is one timeseries bucket: the UTC bucket start and the number of
// incidents created within it.
type Point struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// TimeseriesEngine buckets incident creations by day or week.
type TimeseriesEngine struct {
	repo Repository
}

// NewTimeseriesEngine creates a new timeseries engine.
func NewTimeseriesEngine(repo Repository) *TimeseriesEngine {
	return &TimeseriesEngine{repo: repo}
}

// GetTimeseries counts incidents created per interval bucket over
// [filter.From, filter.To). Every bucket in the range is emitted, including
// empty ones, so a plotted trend has no implicit gaps. Bucket boundaries are
// UTC; weeks start on Monday.
func (e *TimeseriesEngine) GetTimeseries(ctx context.Context, filter Filter, interval Interval) ([]Point, error) {
	if !interval.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInterval, interval)
	}
	if filter.From == nil || filter.To == nil {
		return nil, fmt.Errorf("%w: from and to are required", ErrInvalidRange)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	incidents, err := e.repo.ListIncidents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	from := filter.From.UTC()
	to := filter.To.UTC()

	counts := make(map[time.Time]int)
	for _, incident := range incidents {
		createdAt := incident.CreatedAt.UTC()
		if createdAt.Before(from) || !createdAt.Before(to) {
			continue
		}
		counts[truncateTo(createdAt, interval)]++
	}

	points := make([]Point, 0)
	for bucket := truncateTo(from, interval); bucket.Before(to); bucket = nextBucket(bucket, interval) {
		points = append(points, Point{Date: bucket, Count: counts[bucket]})
	}
	return points, nil
}

// truncateTo snaps t down to its UTC bucket boundary.
func truncateTo(t time.Time, interval Interval) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if interval == IntervalDay {
		return day
	}
	// ISO week: Monday 00:00 UTC.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func nextBucket(t time.Time, interval Interval) time.Time {
	if interval == IntervalDay {
		return t.AddDate(0, 0, 1)
	}
	return t.AddDate(0, 0, 7)
}
