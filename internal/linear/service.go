// Package linear implements the workspace-scoped Linear integration.
// An unconfigured integration is an expected steady state, not a
// fault: the backend reports it with HTTP 404, which this service
// normalizes to connected:false with empty collections.
package linear

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/pixzlo/bridge/internal/backend"
	"github.com/pixzlo/bridge/internal/event"
	"github.com/pixzlo/bridge/internal/metrics"
	"github.com/pixzlo/bridge/pkg/cache"
	"github.com/pixzlo/bridge/pkg/dedup"
	"github.com/pixzlo/bridge/pkg/log"
	"github.com/pkg/errors"
)

const metadataCacheName = "linear_metadata"

// BackendAPI is the backend client surface the service consumes.
type BackendAPI interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Post(ctx context.Context, path string, body interface{}) (json.RawMessage, error)
}

// WorkspaceResolver resolves the active workspace id.
type WorkspaceResolver interface {
	ActiveWorkspaceID(ctx context.Context) (string, error)
}

// Team is a Linear team.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Project is a Linear project.
type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TeamID string `json:"team_id"`
}

// User is a Linear user.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// WorkflowState is one state of a Linear team workflow.
type WorkflowState struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	TeamID string `json:"team_id"`
}

// Preference is the user's last-used team and project.
type Preference struct {
	TeamID    string `json:"team_id"`
	ProjectID string `json:"project_id"`
}

// Status is the integration connection state.
type Status struct {
	Connected   bool            `json:"connected"`
	Integration json.RawMessage `json:"integration,omitempty"`
}

// Metadata is the workspace-scoped Linear metadata.
type Metadata struct {
	Connected bool            `json:"connected"`
	Teams     []Team          `json:"teams"`
	Projects  []Project       `json:"projects"`
	Users     []User          `json:"users"`
	States    []WorkflowState `json:"states"`
	LastUsed  *Preference     `json:"last_used,omitempty"`
}

// IssuePayload is the issue submission payload forwarded to the
// backend. Fields mirror the UI's submission form.
type IssuePayload struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	TeamID      string          `json:"team_id"`
	ProjectID   string          `json:"project_id,omitempty"`
	AssigneeID  string          `json:"assignee_id,omitempty"`
	StateID     string          `json:"state_id,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
}

// IssueResult is the created issue reference returned to the UI.
type IssueResult struct {
	IssueID  string `json:"issueId"`
	IssueURL string `json:"issueUrl"`
}

// Service is the Linear integration service.
type Service struct {
	api       BackendAPI
	workspace WorkspaceResolver
	bus       event.Bus
	metadata  *dedup.Fetcher[*Metadata]
}

// New creates the Linear service.
func New(api BackendAPI, workspace WorkspaceResolver, bus event.Bus, metadataTTL time.Duration) *Service {
	if metadataTTL == 0 {
		metadataTTL = 5 * time.Minute
	}
	return &Service{
		api:       api,
		workspace: workspace,
		bus:       bus,
		metadata:  dedup.NewFetcher(cache.New[*Metadata](metadataTTL)),
	}
}

// Status checks whether Linear is connected for the active workspace.
// A backend 404 means "not connected", not an error.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	workspaceID, err := s.workspace.ActiveWorkspaceID(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.api.Get(ctx, backend.PathLinearStatus+"?workspace_id="+url.QueryEscape(workspaceID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &Status{Connected: false}, nil
	}

	status := &Status{}
	if err := json.Unmarshal(raw, status); err != nil {
		return nil, errors.Wrap(err, "failed to decode linear status")
	}
	return status, nil
}

// Metadata returns teams, projects, users, workflow states and the
// last-used preference for the active workspace, cached and
// deduplicated. force bypasses and repopulates the cache.
func (s *Service) Metadata(ctx context.Context, force bool) (*Metadata, error) {
	workspaceID, err := s.workspace.ActiveWorkspaceID(ctx)
	if err != nil {
		return nil, err
	}

	if force {
		s.metadata.Invalidate(workspaceID)
	} else if md, ok := s.metadata.Cache().Get(workspaceID); ok {
		metrics.CacheHitsTotal.WithLabelValues(metadataCacheName).Inc()
		return md, nil
	}

	return s.metadata.GetOrFetch(workspaceID, func() (*Metadata, error) {
		metrics.CacheMissesTotal.WithLabelValues(metadataCacheName).Inc()
		return s.fetchMetadata(ctx, workspaceID)
	})
}

func (s *Service) fetchMetadata(ctx context.Context, workspaceID string) (*Metadata, error) {
	raw, err := s.api.Get(ctx, backend.PathLinearMetadata+"?workspace_id="+url.QueryEscape(workspaceID))
	if err != nil {
		return nil, err
	}

	md := &Metadata{
		Teams:    []Team{},
		Projects: []Project{},
		Users:    []User{},
		States:   []WorkflowState{},
	}

	// 404: integration not connected, empty collections are the
	// correct steady-state answer
	if raw == nil {
		return md, nil
	}

	if err := json.Unmarshal(raw, md); err != nil {
		return nil, errors.Wrap(err, "failed to decode linear metadata")
	}

	// a body without the connected field implies connected; a body
	// that spells out connected:false is trusted
	var probe struct {
		Connected *bool `json:"connected"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Connected == nil {
		md.Connected = true
	}

	if md.Teams == nil {
		md.Teams = []Team{}
	}
	if md.Projects == nil {
		md.Projects = []Project{}
	}
	if md.Users == nil {
		md.Users = []User{}
	}
	if md.States == nil {
		md.States = []WorkflowState{}
	}

	return md, nil
}

// UpdatePreference persists the last-used team and project, then
// force-clears the metadata cache.
func (s *Service) UpdatePreference(ctx context.Context, teamID, projectID string) error {
	workspaceID, err := s.workspace.ActiveWorkspaceID(ctx)
	if err != nil {
		return err
	}
	if teamID == "" {
		return errors.New("team id is required")
	}

	_, err = s.api.Post(ctx, backend.PathLinearPreference, map[string]string{
		"workspace_id": workspaceID,
		"team_id":      teamID,
		"project_id":   projectID,
	})
	if err != nil {
		return err
	}

	s.invalidate("preference_updated")
	return nil
}

// CreateIssue submits an issue through the backend's batch-create
// endpoint and returns the created issue reference.
func (s *Service) CreateIssue(ctx context.Context, payload IssuePayload) (*IssueResult, error) {
	workspaceID, err := s.workspace.ActiveWorkspaceID(ctx)
	if err != nil {
		return nil, err
	}
	if payload.Title == "" {
		return nil, errors.New("issue title is required")
	}

	raw, err := s.api.Post(ctx, backend.PathIssueBatchCreate, map[string]interface{}{
		"workspace_id": workspaceID,
		"issues":       []IssuePayload{payload},
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("backend returned no issue data")
	}

	var resp struct {
		IssueID  string `json:"issue_id"`
		IssueURL string `json:"issue_url"`
		Issues   []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"issues"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode issue response")
	}

	result := &IssueResult{IssueID: resp.IssueID, IssueURL: resp.IssueURL}
	if len(resp.Issues) > 0 {
		result.IssueID = resp.Issues[0].ID
		result.IssueURL = resp.Issues[0].URL
	}
	if result.IssueID == "" {
		return nil, errors.New("backend returned no issue id")
	}

	return result, nil
}

// InvalidateWorkspace clears the workspace-scoped metadata cache.
func (s *Service) InvalidateWorkspace() {
	s.invalidate("workspace_changed")
}

// Sweep evicts expired metadata entries.
func (s *Service) Sweep() {
	if n := s.metadata.Cache().Sweep(); n > 0 {
		metrics.CacheSweepEvictionsTotal.WithLabelValues(metadataCacheName).Add(float64(n))
	}
}

func (s *Service) invalidate(reason string) {
	s.metadata.InvalidateAll()
	metrics.CacheInvalidationsTotal.WithLabelValues(metadataCacheName, reason).Inc()
	log.Debug("linear metadata cache invalidated", "reason", reason)

	if s.bus != nil {
		s.bus.Publish(event.Event{Type: event.TypeCacheInvalidated, Key: metadataCacheName})
	}
}
