package reports

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func created(t time.Time) *domain.Incident {
	return &domain.Incident{
		ID:        t.Format(time.RFC3339Nano),
		Status:    domain.StatusNew,
		Severity:  domain.SeveritySev3,
		CreatedAt: t,
	}
}

func TestTimeseriesEngine_Daily(t *testing.T) {
	repo := &mockRepository{
		incidents: []*domain.Incident{
			created(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
			created(time.Date(2025, 3, 1, 23, 59, 59, 0, time.UTC)),
			created(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)),
		},
	}
	engine := NewTimeseriesEngine(repo)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	points, err := engine.GetTimeseries(context.Background(), Filter{From: &from, To: &to}, IntervalDay)
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.Equal(t, Point{Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Count: 2}, points[0])
	assert.Equal(t, Point{Date: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), Count: 1}, points[1])
}

func TestTimeseriesEngine_ZeroFillsEmptyBuckets(t *testing.T) {
	repo := &mockRepository{
		incidents: []*domain.Incident{
			created(time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)),
		},
	}
	engine := NewTimeseriesEngine(repo)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	points, err := engine.GetTimeseries(context.Background(), Filter{From: &from, To: &to}, IntervalDay)
	require.NoError(t, err)

	require.Len(t, points, 3)
	assert.Equal(t, 0, points[0].Count)
	assert.Equal(t, 1, points[1].Count)
	assert.Equal(t, 0, points[2].Count)
}

func TestTimeseriesEngine_HalfOpenRange(t *testing.T) {
	repo := &mockRepository{
		incidents: []*domain.Incident{
			created(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
			// Exactly at "to": excluded.
			created(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)),
		},
	}
	engine := NewTimeseriesEngine(repo)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	points, err := engine.GetTimeseries(context.Background(), Filter{From: &from, To: &to}, IntervalDay)
	require.NoError(t, err)

	require.Len(t, points, 1)
	assert.Equal(t, 1, points[0].Count)
}

func TestTimeseriesEngine_WeeklyStartsMonday(t *testing.T) {
	repo := &mockRepository{
		incidents: []*domain.Incident{
			// Wednesday and Sunday of the same ISO week.
			created(time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC)),
			created(time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC)),
			// Monday of the next week.
			created(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)),
		},
	}
	engine := NewTimeseriesEngine(repo)

	from := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)
	points, err := engine.GetTimeseries(context.Background(), Filter{From: &from, To: &to}, IntervalWeek)
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.Equal(t, Point{Date: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), Count: 2}, points[0])
	assert.Equal(t, Point{Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), Count: 1}, points[1])
}

func TestTimeseriesEngine_RangeRequired(t *testing.T) {
	engine := NewTimeseriesEngine(&mockRepository{})

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := engine.GetTimeseries(context.Background(), Filter{From: &from}, IntervalDay)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = engine.GetTimeseries(context.Background(), Filter{}, IntervalDay)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestTimeseriesEngine_UnknownInterval(t *testing.T) {
	engine := NewTimeseriesEngine(&mockRepository{})

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err := engine.GetTimeseries(context.Background(), Filter{From: &from, To: &to}, Interval("month"))
	assert.ErrorIs(t, err, ErrUnknownInterval)
}
