package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTx satisfies pgx.Tx for unit tests. Only Commit and Rollback are
// implemented; the repository mocks ignore the transaction entirely.
type stubTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *stubTx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(_ context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

// mockRepository implements Repository in memory.
type mockRepository struct {
	incidents     map[string]*domain.Incident
	comments      []*domain.Comment
	subscriptions map[string][]string
	nextID        int
	lastTx        *stubTx
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		incidents:     make(map[string]*domain.Incident),
		subscriptions: make(map[string][]string),
	}
}

func cloneIncident(incident *domain.Incident) *domain.Incident {
	clone := *incident
	return &clone
}

func (m *mockRepository) GetIncident(_ context.Context, id string) (*domain.Incident, error) {
	incident, ok := m.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	return cloneIncident(incident), nil
}

func (m *mockRepository) ListIncidents(_ context.Context, _ IncidentFilters) ([]*domain.Incident, error) {
	out := make([]*domain.Incident, 0, len(m.incidents))
	for _, incident := range m.incidents {
		out = append(out, cloneIncident(incident))
	}
	return out, nil
}

func (m *mockRepository) ListComments(_ context.Context, incidentID string) ([]*domain.Comment, error) {
	out := make([]*domain.Comment, 0)
	for _, c := range m.comments {
		if c.IncidentID == incidentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockRepository) BeginTx(_ context.Context) (pgx.Tx, error) {
	m.lastTx = &stubTx{}
	return m.lastTx, nil
}

func (m *mockRepository) CreateIncidentTx(_ context.Context, _ pgx.Tx, incident *domain.Incident) error {
	m.nextID++
	incident.ID = fmt.Sprintf("inc-%d", m.nextID)
	incident.CreatedAt = time.Now().UTC()
	incident.UpdatedAt = incident.CreatedAt
	m.incidents[incident.ID] = cloneIncident(incident)
	return nil
}

func (m *mockRepository) UpdateIncidentTx(_ context.Context, _ pgx.Tx, incident *domain.Incident) error {
	if _, ok := m.incidents[incident.ID]; !ok {
		return ErrIncidentNotFound
	}
	incident.UpdatedAt = time.Now().UTC()
	m.incidents[incident.ID] = cloneIncident(incident)
	return nil
}

func (m *mockRepository) CreateCommentTx(_ context.Context, _ pgx.Tx, comment *domain.Comment) error {
	m.nextID++
	comment.ID = fmt.Sprintf("com-%d", m.nextID)
	comment.CreatedAt = time.Now().UTC()
	m.comments = append(m.comments, comment)
	return nil
}

func (m *mockRepository) CreateSubscriptionTx(_ context.Context, _ pgx.Tx, incidentID, userID string) error {
	for _, existing := range m.subscriptions[incidentID] {
		if existing == userID {
			return nil
		}
	}
	m.subscriptions[incidentID] = append(m.subscriptions[incidentID], userID)
	return nil
}

func (m *mockRepository) DeleteSubscriptionsTx(_ context.Context, _ pgx.Tx, incidentID string) error {
	delete(m.subscriptions, incidentID)
	return nil
}

func (m *mockRepository) DeleteCommentsTx(_ context.Context, _ pgx.Tx, incidentID string) error {
	kept := m.comments[:0]
	for _, c := range m.comments {
		if c.IncidentID != incidentID {
			kept = append(kept, c)
		}
	}
	m.comments = kept
	return nil
}

func (m *mockRepository) DeleteIncidentTx(_ context.Context, _ pgx.Tx, id string) error {
	if _, ok := m.incidents[id]; !ok {
		return ErrIncidentNotFound
	}
	delete(m.incidents, id)
	return nil
}

// mockRecorder implements timeline.Recorder in memory.
type mockRecorder struct {
	events []*domain.TimelineEvent
	nextID int
}

func (m *mockRecorder) AppendTx(_ context.Context, _ pgx.Tx, event *domain.TimelineEvent) error {
	m.nextID++
	event.ID = fmt.Sprintf("evt-%d", m.nextID)
	event.CreatedAt = time.Now().UTC()
	clone := *event
	m.events = append(m.events, &clone)
	return nil
}

func (m *mockRecorder) ListByIncident(_ context.Context, incidentID string) ([]*domain.TimelineEvent, error) {
	out := make([]*domain.TimelineEvent, 0)
	for _, e := range m.events {
		if e.IncidentID == incidentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockRecorder) DeleteByIncidentTx(_ context.Context, _ pgx.Tx, incidentID string) error {
	kept := m.events[:0]
	for _, e := range m.events {
		if e.IncidentID != incidentID {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

// mockNotifier records notification calls.
type mockNotifier struct {
	incidents []*domain.Incident
	err       error
}

func (m *mockNotifier) IncidentCreated(_ context.Context, incident *domain.Incident) error {
	m.incidents = append(m.incidents, incident)
	return m.err
}

func newTestService() (*Service, *mockRepository, *mockRecorder, *mockNotifier) {
	repo := newMockRepository()
	recorder := &mockRecorder{}
	notifier := &mockNotifier{}
	return NewService(repo, recorder, notifier), repo, recorder, notifier
}

func TestCreateIncidentForcesNewStatus(t *testing.T) {
	svc, repo, recorder, _ := newTestService()

	incident, err := svc.CreateIncident(context.Background(), CreateIncidentInput{
		Title: "db replica lag",
	}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNew, incident.Status)
	assert.Equal(t, domain.SeveritySev3, incident.Severity, "severity defaults to sev3")
	assert.Equal(t, "user-1", incident.ReporterID)

	require.Len(t, recorder.events, 1)
	event := recorder.events[0]
	assert.Equal(t, domain.TimelineStatusChange, event.Type)
	assert.Nil(t, event.FromStatus)
	require.NotNil(t, event.ToStatus)
	assert.Equal(t, domain.StatusNew, *event.ToStatus)

	assert.Equal(t, []string{"user-1"}, repo.subscriptions[incident.ID])
	assert.True(t, repo.lastTx.committed)
}

func TestCreateIncidentSubscribesAssignee(t *testing.T) {
	svc, repo, _, _ := newTestService()

	assignee := "user-2"
	incident, err := svc.CreateIncident(context.Background(), CreateIncidentInput{
		Title:      "elevated 5xx rate",
		AssigneeID: &assignee,
	}, "user-1")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"user-1", "user-2"}, repo.subscriptions[incident.ID])
}

func TestCreateIncidentNotifiesOnCriticalSeverity(t *testing.T) {
	tests := []struct {
		severity   domain.Severity
		wantNotify bool
	}{
		{domain.SeveritySev1, true},
		{domain.SeveritySev2, true},
		{domain.SeveritySev3, false},
		{domain.SeveritySev4, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			svc, _, _, notifier := newTestService()

			_, err := svc.CreateIncident(context.Background(), CreateIncidentInput{
				Title:    "gateway down",
				Severity: tt.severity,
			}, "user-1")
			require.NoError(t, err)

			if tt.wantNotify {
				assert.Len(t, notifier.incidents, 1)
			} else {
				assert.Empty(t, notifier.incidents)
			}
		})
	}
}

func TestCreateIncidentSurvivesNotifierFailure(t *testing.T) {
	svc, repo, _, notifier := newTestService()
	notifier.err = errors.New("pager unreachable")

	incident, err := svc.CreateIncident(context.Background(), CreateIncidentInput{
		Title:    "gateway down",
		Severity: domain.SeveritySev1,
	}, "user-1")
	require.NoError(t, err, "notification failure must not fail the create")
	assert.Contains(t, repo.incidents, incident.ID)
}

func TestCreateIncidentRejectsUnknownSeverity(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.CreateIncident(context.Background(), CreateIncidentInput{
		Title:    "x",
		Severity: domain.Severity("sev9"),
	}, "user-1")
	assert.ErrorIs(t, err, ErrInvalidSeverity)
}

func createTestIncident(t *testing.T, svc *Service) *domain.Incident {
	t.Helper()
	incident, err := svc.CreateIncident(context.Background(), CreateIncidentInput{
		Title: "test incident",
	}, "reporter-1")
	require.NoError(t, err)
	return incident
}

func TestChangeStatusAppliesAllowedTransition(t *testing.T) {
	svc, _, recorder, _ := newTestService()
	incident := createTestIncident(t, svc)

	updated, err := svc.ChangeStatus(context.Background(), incident.ID, domain.StatusTriaged, "looked at it", "user-2")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusTriaged, updated.Status)
	require.NotNil(t, updated.TriagedAt)

	require.Len(t, recorder.events, 2)
	event := recorder.events[1]
	assert.Equal(t, domain.TimelineStatusChange, event.Type)
	require.NotNil(t, event.FromStatus)
	assert.Equal(t, domain.StatusNew, *event.FromStatus)
	assert.Equal(t, domain.StatusTriaged, *event.ToStatus)
	assert.Equal(t, "looked at it", event.Message)
	assert.Equal(t, "user-2", event.AuthorID)
}

func TestChangeStatusRejectsInvalidTransition(t *testing.T) {
	svc, repo, recorder, _ := newTestService()
	incident := createTestIncident(t, svc)

	// closed is not reachable from new
	_, err := svc.ChangeStatus(context.Background(), incident.ID, domain.StatusClosed, "", "user-2")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// state and timeline unchanged
	stored := repo.incidents[incident.ID]
	assert.Equal(t, domain.StatusNew, stored.Status)
	assert.Len(t, recorder.events, 1)
}

func TestChangeStatusRejectsSameStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	incident := createTestIncident(t, svc)

	_, err := svc.ChangeStatus(context.Background(), incident.ID, domain.StatusNew, "", "user-2")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestChangeStatusNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.ChangeStatus(context.Background(), "missing", domain.StatusTriaged, "", "user-2")
	assert.ErrorIs(t, err, ErrIncidentNotFound)
}

func TestChangeStatusSetsMilestonesOnce(t *testing.T) {
	svc, _, _, _ := newTestService()
	incident := createTestIncident(t, svc)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, incident.ID, domain.StatusInProgress, "", "u")
	require.NoError(t, err)
	resolved, err := svc.ChangeStatus(ctx, incident.ID, domain.StatusResolved, "", "u")
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	firstResolvedAt := *resolved.ResolvedAt

	// reopen, work again, resolve again
	_, err = svc.ChangeStatus(ctx, incident.ID, domain.StatusReopened, "", "u")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, incident.ID, domain.StatusInProgress, "", "u")
	require.NoError(t, err)
	again, err := svc.ChangeStatus(ctx, incident.ID, domain.StatusResolved, "", "u")
	require.NoError(t, err)

	require.NotNil(t, again.ResolvedAt)
	assert.Equal(t, firstResolvedAt, *again.ResolvedAt, "resolvedAt must keep the first resolution time")
}

func TestChangeStatusClosedAfterResolved(t *testing.T) {
	svc, _, _, _ := newTestService()
	incident := createTestIncident(t, svc)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, incident.ID, domain.StatusInProgress, "", "u")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, incident.ID, domain.StatusResolved, "", "u")
	require.NoError(t, err)
	closed, err := svc.ChangeStatus(ctx, incident.ID, domain.StatusClosed, "", "u")
	require.NoError(t, err)

	require.NotNil(t, closed.ClosedAt)
	require.NotNil(t, closed.ResolvedAt)
	assert.False(t, closed.ClosedAt.Before(*closed.ResolvedAt))
}

func TestUpdateFieldsSeverity(t *testing.T) {
	svc, _, recorder, _ := newTestService()
	incident := createTestIncident(t, svc)

	sev1 := domain.SeveritySev1
	updated, err := svc.UpdateFields(context.Background(), incident.ID, FieldUpdates{Severity: &sev1}, "user-2")
	require.NoError(t, err)

	assert.Equal(t, domain.SeveritySev1, updated.Severity)
	require.Len(t, recorder.events, 2)
	event := recorder.events[1]
	assert.Equal(t, domain.TimelineFieldUpdate, event.Type)
	assert.Contains(t, event.Message, "sev3")
	assert.Contains(t, event.Message, "sev1")
}

func TestUpdateFieldsAssignee(t *testing.T) {
	svc, repo, recorder, _ := newTestService()
	incident := createTestIncident(t, svc)

	assignee := "user-9"
	updated, err := svc.UpdateFields(context.Background(), incident.ID, FieldUpdates{AssigneeID: &assignee}, "user-2")
	require.NoError(t, err)

	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, "user-9", *updated.AssigneeID)

	require.Len(t, recorder.events, 2)
	assert.Equal(t, domain.TimelineAssignment, recorder.events[1].Type)

	assert.Contains(t, repo.subscriptions[incident.ID], "user-9")
}

func TestUpdateFieldsNoChangeNoEvent(t *testing.T) {
	svc, _, recorder, _ := newTestService()
	incident := createTestIncident(t, svc)

	sev3 := domain.SeveritySev3
	_, err := svc.UpdateFields(context.Background(), incident.ID, FieldUpdates{Severity: &sev3}, "user-2")
	require.NoError(t, err)

	assert.Len(t, recorder.events, 1, "unchanged field must not append an event")
}

func TestAddComment(t *testing.T) {
	svc, repo, recorder, _ := newTestService()
	incident := createTestIncident(t, svc)

	comment, err := svc.AddComment(context.Background(), incident.ID, "rolled back the deploy", "user-3")
	require.NoError(t, err)

	assert.Equal(t, "rolled back the deploy", comment.Body)
	require.Len(t, repo.comments, 1)

	require.Len(t, recorder.events, 2)
	event := recorder.events[1]
	assert.Equal(t, domain.TimelineComment, event.Type)
	assert.Equal(t, "rolled back the deploy", event.Message, "comment event carries the body")
}

func TestDeleteIncidentForbiddenForNonReporter(t *testing.T) {
	svc, repo, _, _ := newTestService()
	incident := createTestIncident(t, svc)

	err := svc.DeleteIncident(context.Background(), incident.ID, "someone-else")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, repo.incidents, incident.ID)
}

func TestDeleteIncidentCascades(t *testing.T) {
	svc, repo, recorder, _ := newTestService()
	incident := createTestIncident(t, svc)

	_, err := svc.AddComment(context.Background(), incident.ID, "note", "reporter-1")
	require.NoError(t, err)

	err = svc.DeleteIncident(context.Background(), incident.ID, "reporter-1")
	require.NoError(t, err)

	assert.NotContains(t, repo.incidents, incident.ID)
	assert.Empty(t, recorder.events)
	assert.Empty(t, repo.comments)
	assert.Empty(t, repo.subscriptions[incident.ID])
}

func TestGetTimelineOrdering(t *testing.T) {
	svc, _, _, _ := newTestService()
	incident := createTestIncident(t, svc)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, incident.ID, domain.StatusTriaged, "", "u")
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, incident.ID, "first note", "u")
	require.NoError(t, err)

	events, err := svc.GetTimeline(ctx, incident.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.TimelineStatusChange, events[0].Type)
	assert.Equal(t, domain.TimelineStatusChange, events[1].Type)
	assert.Equal(t, domain.TimelineComment, events[2].Type)
}
