package router

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pixzlo/bridge/internal/figma"
	"github.com/pixzlo/bridge/internal/linear"
	"github.com/pixzlo/bridge/internal/workspace"
	"github.com/pkg/errors"
)

// Message types accepted from UI surfaces. The mixed naming is part of
// the wire contract and preserved as-is.
const (
	TypeFigmaCheckStatus      = "figma-check-status"
	TypeFigmaFetchMetadata    = "figma-fetch-metadata"
	TypeFigmaRenderFrame      = "FIGMA_RENDER_FRAME"
	TypeFigmaUpdatePreference = "figma-update-preference"
	TypeFigmaCreateDesignLink = "figma-create-design-link"
	TypeFigmaDeleteDesignLink = "figma-delete-design-link"
	TypeFigmaOAuthCompleted   = "figma-oauth-completed"
	TypeLinearCheckStatus     = "linear-check-status"
	TypeLinearFetchMetadata   = "linear-fetch-metadata"
	TypeLinearUpdatePref      = "linear-update-preference"
	TypeSubmitIssue           = "SUBMIT_ISSUE"
	TypeAPICall               = "API_CALL"
	TypeWorkspaceGetActive    = "workspace-get-active"
	TypeWorkspaceSelect       = "workspace-select"
	TypeWorkspaceList         = "workspace-list"
)

// FigmaService is the Figma integration surface the router consumes.
type FigmaService interface {
	Status(ctx context.Context) (*figma.Status, error)
	Metadata(ctx context.Context, req figma.MetadataRequest) (*figma.Metadata, error)
	RenderFrame(ctx context.Context, figmaURL string) (*figma.FrameRender, error)
	UpdatePreference(ctx context.Context, req figma.PreferenceRequest) error
	CreateDesignLink(ctx context.Context, req figma.DesignLinkRequest) (*figma.DesignLink, error)
	DeleteDesignLink(ctx context.Context, linkID string) error
	CompleteOAuth(ctx context.Context)
}

// LinearService is the Linear integration surface the router consumes.
type LinearService interface {
	Status(ctx context.Context) (*linear.Status, error)
	Metadata(ctx context.Context, force bool) (*linear.Metadata, error)
	UpdatePreference(ctx context.Context, teamID, projectID string) error
	CreateIssue(ctx context.Context, payload linear.IssuePayload) (*linear.IssueResult, error)
}

// WorkspaceService is the workspace resolution surface the router
// consumes.
type WorkspaceService interface {
	ActiveWorkspaceID(ctx context.Context) (string, error)
	Select(ctx context.Context, id string) error
	Workspaces(ctx context.Context) ([]workspace.Workspace, error)
}

// BackendAPI is the raw backend surface used by the API_CALL
// passthrough.
type BackendAPI interface {
	Do(ctx context.Context, method, path string, headers map[string]string, body interface{}) (json.RawMessage, error)
}

// Services bundles everything the handlers need.
type Services struct {
	Figma     FigmaService
	Linear    LinearService
	Workspace WorkspaceService
	Backend   BackendAPI
}

// New builds a Router with every message type bound.
func New(svc Services) *Router {
	r := NewRouter()

	r.Register(TypeFigmaCheckStatus, func(ctx context.Context, _ Message) (interface{}, error) {
		return svc.Figma.Status(ctx)
	})

	r.Register(TypeFigmaFetchMetadata, Typed(func(ctx context.Context, req figma.MetadataRequest) (interface{}, error) {
		return svc.Figma.Metadata(ctx, req)
	}))

	r.Register(TypeFigmaRenderFrame, Typed(func(ctx context.Context, req struct {
		FigmaURL string `json:"figmaUrl"`
	}) (interface{}, error) {
		if req.FigmaURL == "" {
			return nil, errors.New("figmaUrl is required")
		}
		return svc.Figma.RenderFrame(ctx, req.FigmaURL)
	}))

	r.Register(TypeFigmaUpdatePreference, Typed(func(ctx context.Context, req figma.PreferenceRequest) (interface{}, error) {
		if err := svc.Figma.UpdatePreference(ctx, req); err != nil {
			return nil, err
		}
		return map[string]bool{"updated": true}, nil
	}))

	r.Register(TypeFigmaCreateDesignLink, Typed(func(ctx context.Context, req figma.DesignLinkRequest) (interface{}, error) {
		return svc.Figma.CreateDesignLink(ctx, req)
	}))

	r.Register(TypeFigmaDeleteDesignLink, Typed(func(ctx context.Context, req struct {
		LinkID string `json:"linkId"`
	}) (interface{}, error) {
		if err := svc.Figma.DeleteDesignLink(ctx, req.LinkID); err != nil {
			return nil, err
		}
		return map[string]bool{"deleted": true}, nil
	}))

	r.Register(TypeFigmaOAuthCompleted, func(ctx context.Context, _ Message) (interface{}, error) {
		svc.Figma.CompleteOAuth(ctx)
		return map[string]bool{"invalidated": true}, nil
	})

	r.Register(TypeLinearCheckStatus, func(ctx context.Context, _ Message) (interface{}, error) {
		return svc.Linear.Status(ctx)
	})

	r.Register(TypeLinearFetchMetadata, Typed(func(ctx context.Context, req struct {
		Force bool `json:"force"`
	}) (interface{}, error) {
		return svc.Linear.Metadata(ctx, req.Force)
	}))

	r.Register(TypeLinearUpdatePref, Typed(func(ctx context.Context, req struct {
		TeamID    string `json:"teamId"`
		ProjectID string `json:"projectId"`
	}) (interface{}, error) {
		if err := svc.Linear.UpdatePreference(ctx, req.TeamID, req.ProjectID); err != nil {
			return nil, err
		}
		return map[string]bool{"updated": true}, nil
	}))

	r.Register(TypeSubmitIssue, Typed(func(ctx context.Context, req struct {
		Payload linear.IssuePayload `json:"payload"`
	}) (interface{}, error) {
		return svc.Linear.CreateIssue(ctx, req.Payload)
	}))

	r.Register(TypeAPICall, Typed(func(ctx context.Context, req apiCallRequest) (interface{}, error) {
		return handleAPICall(ctx, svc.Backend, req)
	}))

	r.Register(TypeWorkspaceGetActive, func(ctx context.Context, _ Message) (interface{}, error) {
		id, err := svc.Workspace.ActiveWorkspaceID(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"workspaceId": id}, nil
	})

	r.Register(TypeWorkspaceSelect, Typed(func(ctx context.Context, req struct {
		WorkspaceID string `json:"workspaceId"`
	}) (interface{}, error) {
		if err := svc.Workspace.Select(ctx, req.WorkspaceID); err != nil {
			return nil, err
		}
		return map[string]string{"workspaceId": req.WorkspaceID}, nil
	}))

	r.Register(TypeWorkspaceList, func(ctx context.Context, _ Message) (interface{}, error) {
		return svc.Workspace.Workspaces(ctx)
	})

	return r
}

type apiCallRequest struct {
	Endpoint string `json:"endpoint"`
	Options  struct {
		Method  string            `json:"method"`
		Headers map[string]string `json:"headers"`
		Body    json.RawMessage   `json:"body"`
	} `json:"options"`
}

// handleAPICall forwards an arbitrary backend API request on behalf of
// a UI surface. Only backend API paths are reachable.
func handleAPICall(ctx context.Context, api BackendAPI, req apiCallRequest) (interface{}, error) {
	if req.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if !strings.HasPrefix(req.Endpoint, "/api/") {
		return nil, errors.Errorf("endpoint %q is not a backend API path", req.Endpoint)
	}

	method := req.Options.Method
	if method == "" {
		method = "GET"
	}

	var body interface{}
	if len(req.Options.Body) > 0 {
		body = req.Options.Body
	}

	raw, err := api.Do(ctx, method, req.Endpoint, req.Options.Headers, body)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	return raw, nil
}
