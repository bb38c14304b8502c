package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/incident-pulse/internal/domain"
	"github.com/bissquit/incident-pulse/internal/timeline"
)

// csvColumns is the fixed export column order. The CSV header is the literal
// comma join of these names; callers depend on it byte for byte.
var csvColumns = []string{
	"id", "createdAt", "title", "severity", "status",
	"team", "service", "assignee", "reporter",
	"mttrSeconds", "slaTargetSeconds", "slaMet",
	"resolvedAt", "closedAt", "categories", "tags",
}

// listSeparator joins multi-valued cells (categories, tags).
const listSeparator = ";"

// Table is the tabular report form: one row per incident in the fixed
// column order. It is the single source both the CSV and the document
// export serialize from.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Document is the payload handed to a DocumentRenderer.
// Timeline is populated only for the incident-scoped variant.
type Document struct {
	Title       string
	GeneratedAt time.Time
	Table       *Table
	Timeline    []*domain.TimelineEvent
}

// DocumentRenderer turns a document into its final byte form. Byte-level
// formats (PDF and friends) live behind this collaborator.
type DocumentRenderer interface {
	Render(ctx context.Context, doc *Document) ([]byte, error)
}

// Exporter builds tabular incident reports and serializes them.
type Exporter struct {
	repo     Repository
	recorder timeline.Recorder
	renderer DocumentRenderer
	targets  SLATargets
}

// NewExporter creates a new report exporter.
func NewExporter(repo Repository, recorder timeline.Recorder, renderer DocumentRenderer, targets SLATargets) *Exporter {
	if targets == nil {
		targets = DefaultSLATargets()
	}
	return &Exporter{
		repo:     repo,
		recorder: recorder,
		renderer: renderer,
		targets:  targets,
	}
}

// BuildTable produces one row per matching incident in the fixed column order.
func (e *Exporter) BuildTable(ctx context.Context, filter Filter) (*Table, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	incidents, err := e.repo.ListIncidents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	return e.buildTable(ctx, incidents)
}

func (e *Exporter) buildTable(ctx context.Context, incidents []*domain.Incident) (*Table, error) {
	names, err := e.collectNames(ctx, incidents)
	if err != nil {
		return nil, err
	}

	table := &Table{
		Columns: append([]string(nil), csvColumns...),
		Rows:    make([][]string, 0, len(incidents)),
	}
	for _, incident := range incidents {
		table.Rows = append(table.Rows, e.buildRow(incident, names))
	}
	return table, nil
}

// rowNames holds the resolved display names for all referenced entities.
type rowNames struct {
	teams      map[string]string
	services   map[string]string
	users      map[string]string
	categories map[string]string
	tags       map[string]string
}

func (e *Exporter) collectNames(ctx context.Context, incidents []*domain.Incident) (*rowNames, error) {
	teamIDs := make(map[string]struct{})
	serviceIDs := make(map[string]struct{})
	userIDs := make(map[string]struct{})
	categoryIDs := make(map[string]struct{})
	tagIDs := make(map[string]struct{})

	for _, incident := range incidents {
		if incident.TeamID != nil {
			teamIDs[*incident.TeamID] = struct{}{}
		}
		if incident.ServiceID != nil {
			serviceIDs[*incident.ServiceID] = struct{}{}
		}
		if incident.AssigneeID != nil {
			userIDs[*incident.AssigneeID] = struct{}{}
		}
		userIDs[incident.ReporterID] = struct{}{}
		for _, id := range incident.CategoryIDs {
			categoryIDs[id] = struct{}{}
		}
		for _, id := range incident.TagIDs {
			tagIDs[id] = struct{}{}
		}
	}

	names := &rowNames{}
	var err error
	if names.teams, err = e.repo.TeamNames(ctx, keys(teamIDs)); err != nil {
		return nil, fmt.Errorf("resolve team names: %w", err)
	}
	if names.services, err = e.repo.ServiceNames(ctx, keys(serviceIDs)); err != nil {
		return nil, fmt.Errorf("resolve service names: %w", err)
	}
	if names.users, err = e.repo.UserNames(ctx, keys(userIDs)); err != nil {
		return nil, fmt.Errorf("resolve user names: %w", err)
	}
	if names.categories, err = e.repo.CategoryNames(ctx, keys(categoryIDs)); err != nil {
		return nil, fmt.Errorf("resolve category names: %w", err)
	}
	if names.tags, err = e.repo.TagNames(ctx, keys(tagIDs)); err != nil {
		return nil, fmt.Errorf("resolve tag names: %w", err)
	}
	return names, nil
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func (e *Exporter) buildRow(incident *domain.Incident, names *rowNames) []string {
	mttr := ""
	slaMet := ""
	if duration, ok := incident.ResolveDuration(); ok {
		mttr = strconv.FormatInt(int64(duration.Seconds()), 10)
		if target, ok := e.targets.Target(incident.Severity); ok {
			slaMet = strconv.FormatBool(duration <= target)
		}
	}

	slaTarget := ""
	if target, ok := e.targets.Target(incident.Severity); ok {
		slaTarget = strconv.FormatInt(int64(target.Seconds()), 10)
	}

	return []string{
		incident.ID,
		formatTime(&incident.CreatedAt),
		incident.Title,
		string(incident.Severity),
		string(incident.Status),
		lookupRef(names.teams, incident.TeamID),
		lookupRef(names.services, incident.ServiceID),
		lookupRef(names.users, incident.AssigneeID),
		lookupName(names.users, incident.ReporterID),
		mttr,
		slaTarget,
		slaMet,
		formatTime(incident.ResolvedAt),
		formatTime(incident.ClosedAt),
		joinNames(names.categories, incident.CategoryIDs),
		joinNames(names.tags, incident.TagIDs),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func lookupRef(names map[string]string, id *string) string {
	if id == nil {
		return ""
	}
	return lookupName(names, *id)
}

func lookupName(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return id
}

func joinNames(names map[string]string, ids []string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, lookupName(names, id))
	}
	return strings.Join(parts, listSeparator)
}

// WriteCSV serializes the filtered table to w: the literal header row
// followed by one data row per incident.
func (e *Exporter) WriteCSV(ctx context.Context, filter Filter, w io.Writer) error {
	table, err := e.BuildTable(ctx, filter)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range table.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ExportDocument renders the filtered table as a document.
func (e *Exporter) ExportDocument(ctx context.Context, filter Filter) ([]byte, error) {
	table, err := e.BuildTable(ctx, filter)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Title:       "Incident report",
		GeneratedAt: time.Now().UTC(),
		Table:       table,
	}
	return e.renderer.Render(ctx, doc)
}

// ExportIncidentDocument renders a single incident with its full timeline.
func (e *Exporter) ExportIncidentDocument(ctx context.Context, incidentID string) ([]byte, error) {
	incident, err := e.repo.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	table, err := e.buildTable(ctx, []*domain.Incident{incident})
	if err != nil {
		return nil, err
	}

	events, err := e.recorder.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}

	doc := &Document{
		Title:       fmt.Sprintf("Incident %s: %s", incident.ID, incident.Title),
		GeneratedAt: time.Now().UTC(),
		Table:       table,
		Timeline:    events,
	}
	return e.renderer.Render(ctx, doc)
}
