//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/bissquit/incident-pulse/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// seedUser inserts a user row and returns its id.
func seedUser(t *testing.T, name string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := testDB.Exec(context.Background(),
		`INSERT INTO users (id, name) VALUES ($1, $2)`, id, name)
	require.NoError(t, err)
	return id
}

// seedTeam inserts a team row and returns its id.
func seedTeam(t *testing.T, name string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := testDB.Exec(context.Background(),
		`INSERT INTO teams (id, name) VALUES ($1, $2)`, id, name)
	require.NoError(t, err)
	return id
}

// seedService inserts a service row and returns its id.
func seedService(t *testing.T, name string, teamID *string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := testDB.Exec(context.Background(),
		`INSERT INTO services (id, name, team_id) VALUES ($1, $2, $3)`, id, name, teamID)
	require.NoError(t, err)
	return id
}

// seedCategory inserts a category row and returns its id.
func seedCategory(t *testing.T, name string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := testDB.Exec(context.Background(),
		`INSERT INTO categories (id, name) VALUES ($1, $2)`, id, name+"-"+id[:8])
	require.NoError(t, err)
	return id
}

// seedTag inserts a tag row and returns its id.
func seedTag(t *testing.T, name string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := testDB.Exec(context.Background(),
		`INSERT INTO tags (id, name) VALUES ($1, $2)`, id, name+"-"+id[:8])
	require.NoError(t, err)
	return id
}

// incidentResponse is the incident shape returned inside the data envelope.
type incidentResponse struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	Severity     string   `json:"severity"`
	ReporterID   string   `json:"reporter_id"`
	AssigneeID   *string  `json:"assignee_id"`
	TeamID       *string  `json:"team_id"`
	ServiceID    *string  `json:"service_id"`
	CategoryIDs  []string `json:"category_ids"`
	TagIDs       []string `json:"tag_ids"`
	CreatedAt    string   `json:"created_at"`
	TriagedAt    *string  `json:"triaged_at"`
	InProgressAt *string  `json:"in_progress_at"`
	ResolvedAt   *string  `json:"resolved_at"`
	ClosedAt     *string  `json:"closed_at"`
}

// createIncident creates an incident through the API and returns it.
func createIncident(t *testing.T, client *testutil.Client, payload map[string]interface{}) incidentResponse {
	t.Helper()

	resp, err := client.POST("/api/v1/incidents", payload)
	require.NoError(t, err)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create incident: status=%d body=%s", resp.StatusCode, testutil.ReadBody(t, resp))
	}

	var result struct {
		Data incidentResponse `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

// changeStatus transitions an incident and returns the HTTP response.
func changeStatus(t *testing.T, client *testutil.Client, id, status string) *http.Response {
	t.Helper()

	resp, err := client.PATCH("/api/v1/incidents/"+id+"/status", map[string]string{"status": status})
	require.NoError(t, err)
	return resp
}

// mustTransition asserts the transition succeeds and returns the incident.
func mustTransition(t *testing.T, client *testutil.Client, id, status string) incidentResponse {
	t.Helper()

	resp := changeStatus(t, client, id, status)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data incidentResponse `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}
