// Package figma implements the workspace-scoped Figma integration:
// cached metadata (connection state, access token, design links),
// frame rendering, and the mutating preference and design-link calls
// that force-invalidate the metadata cache for read-after-write
// consistency.
package figma

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/pixzlo/bridge/internal/backend"
	"github.com/pixzlo/bridge/internal/event"
	"github.com/pixzlo/bridge/internal/figmaapi"
	"github.com/pixzlo/bridge/internal/metrics"
	"github.com/pixzlo/bridge/pkg/cache"
	"github.com/pixzlo/bridge/pkg/dedup"
	"github.com/pixzlo/bridge/pkg/log"
	"github.com/pkg/errors"
)

const (
	metadataCacheName = "figma_metadata"
	renderCacheName   = "figma_render"
)

// BackendAPI is the backend client surface the service consumes.
type BackendAPI interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Post(ctx context.Context, path string, body interface{}) (json.RawMessage, error)
	Delete(ctx context.Context, path string, body interface{}) (json.RawMessage, error)
}

// FigmaAPI is the Figma REST surface the service consumes.
type FigmaAPI interface {
	File(ctx context.Context, token, fileID string) (*figmaapi.File, error)
	RenderImage(ctx context.Context, token, fileID, nodeID string) (string, error)
}

// WorkspaceResolver resolves the active workspace id.
type WorkspaceResolver interface {
	ActiveWorkspaceID(ctx context.Context) (string, error)
}

// Config holds the service cache TTLs.
type Config struct {
	MetadataTTL time.Duration
	RenderTTL   time.Duration
}

// Service is the Figma integration service.
type Service struct {
	api       BackendAPI
	figma     FigmaAPI
	workspace WorkspaceResolver
	bus       event.Bus

	metadata *dedup.Fetcher[*Metadata]
	renders  *dedup.Fetcher[*FrameRender]
}

// New creates the Figma service.
func New(api BackendAPI, figma FigmaAPI, workspace WorkspaceResolver, bus event.Bus, cfg Config) *Service {
	if cfg.MetadataTTL == 0 {
		cfg.MetadataTTL = 5 * time.Minute
	}
	if cfg.RenderTTL == 0 {
		cfg.RenderTTL = 5 * time.Minute
	}
	return &Service{
		api:       api,
		figma:     figma,
		workspace: workspace,
		bus:       bus,
		metadata:  dedup.NewFetcher(cache.New[*Metadata](cfg.MetadataTTL)),
		renders:   dedup.NewFetcher(cache.New[*FrameRender](cfg.RenderTTL)),
	}
}

// Metadata returns the integration metadata for the resolved
// workspace, cached and deduplicated. Force bypasses and repopulates
// the cache.
func (s *Service) Metadata(ctx context.Context, req MetadataRequest) (*Metadata, error) {
	workspaceID := req.WorkspaceID
	if workspaceID == "" {
		var err error
		if workspaceID, err = s.workspace.ActiveWorkspaceID(ctx); err != nil {
			return nil, err
		}
	}

	key := workspaceID + "|" + req.WebsiteURL

	if req.Force {
		s.metadata.Invalidate(key)
	} else if md, ok := s.metadata.Cache().Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues(metadataCacheName).Inc()
		return md, nil
	}

	// counted inside the producer so a fetch resolved by a concurrent
	// caller does not register as a miss
	return s.metadata.GetOrFetch(key, func() (*Metadata, error) {
		metrics.CacheMissesTotal.WithLabelValues(metadataCacheName).Inc()
		return s.fetchMetadata(ctx, workspaceID, req.WebsiteURL)
	})
}

func (s *Service) fetchMetadata(ctx context.Context, workspaceID, websiteURL string) (*Metadata, error) {
	params := url.Values{}
	params.Set("workspace_id", workspaceID)
	if websiteURL != "" {
		params.Set("website_url", websiteURL)
	}

	raw, err := s.api.Get(ctx, backend.PathFigmaMetadata+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	// 404: the integration is not configured for this workspace
	md := &Metadata{DesignLinks: []DesignLink{}}
	if raw == nil {
		return md, nil
	}

	if err := json.Unmarshal(raw, md); err != nil {
		return nil, errors.Wrap(err, "failed to decode figma metadata")
	}
	if md.DesignLinks == nil {
		md.DesignLinks = []DesignLink{}
	}

	return md, nil
}

// Status condenses the metadata into a connection check.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	md, err := s.Metadata(ctx, MetadataRequest{})
	if err != nil {
		return nil, err
	}

	status := &Status{Connected: md.Connected}
	if md.AccessToken != nil {
		status.TokenStatus = md.AccessToken.Status
	}
	return status, nil
}

// RenderFrame parses figmaURL, then fetches or reuses the cached
// render for its fileID:nodeID key. A failed render never populates
// the cache, so a later retry starts clean.
func (s *Service) RenderFrame(ctx context.Context, figmaURL string) (*FrameRender, error) {
	ref := ParseFrameURL(figmaURL)
	if ref.FileID == "" {
		return nil, errors.Errorf("could not extract a file id from Figma URL %q", figmaURL)
	}
	if ref.NodeID == "" {
		return nil, errors.Errorf("Figma URL %q is missing a node-id", figmaURL)
	}

	key := ref.FileID + ":" + ref.NodeID

	if render, ok := s.renders.Cache().Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues(renderCacheName).Inc()
		return render, nil
	}
	return s.renders.GetOrFetch(key, func() (*FrameRender, error) {
		metrics.CacheMissesTotal.WithLabelValues(renderCacheName).Inc()
		return s.renderFrame(ctx, ref)
	})
}

func (s *Service) renderFrame(ctx context.Context, ref FrameRef) (*FrameRender, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	file, err := s.figma.File(ctx, token, ref.FileID)
	if err != nil {
		return nil, err
	}

	node := findNode(file.Document, ref.NodeID)
	if node == nil {
		return nil, errors.Errorf("node %s not found in Figma file %s", ref.NodeID, ref.FileID)
	}

	imageURL, err := s.figma.RenderImage(ctx, token, ref.FileID, ref.NodeID)
	if err != nil {
		return nil, err
	}

	return &FrameRender{
		FileID:    ref.FileID,
		NodeID:    ref.NodeID,
		FrameName: node.Name,
		Node:      node,
		Elements:  extractElements(node),
		ImageURL:  imageURL,
	}, nil
}

// accessToken returns a valid Figma token from the cached metadata.
func (s *Service) accessToken(ctx context.Context) (string, error) {
	md, err := s.Metadata(ctx, MetadataRequest{})
	if err != nil {
		return "", err
	}

	switch {
	case md.AccessToken == nil || md.AccessToken.Status == TokenMissing:
		return "", errors.New("Figma is not connected. Please connect Figma in Pixzlo settings.")
	case md.AccessToken.Status != TokenValid:
		return "", errors.Errorf("Figma access token is %s. Please reconnect Figma.", md.AccessToken.Status)
	}

	return md.AccessToken.Token, nil
}

// UpdatePreference persists the last-used frame, then force-clears the
// metadata cache so the next read reflects the write.
func (s *Service) UpdatePreference(ctx context.Context, req PreferenceRequest) error {
	workspaceID, err := s.workspace.ActiveWorkspaceID(ctx)
	if err != nil {
		return err
	}

	_, err = s.api.Post(ctx, backend.PathFigmaPreference, map[string]string{
		"workspace_id": workspaceID,
		"file_id":      req.FileID,
		"node_id":      req.NodeID,
		"frame_name":   req.FrameName,
	})
	if err != nil {
		return err
	}

	s.invalidateMetadata("preference_updated")
	return nil
}

// CreateDesignLink persists a website-to-frame association.
func (s *Service) CreateDesignLink(ctx context.Context, req DesignLinkRequest) (*DesignLink, error) {
	workspaceID, err := s.workspace.ActiveWorkspaceID(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.api.Post(ctx, backend.PathFigmaDesignLinks, map[string]string{
		"workspace_id": workspaceID,
		"website_url":  req.WebsiteURL,
		"figma_url":    req.FigmaURL,
		"frame_name":   req.FrameName,
	})
	if err != nil {
		return nil, err
	}

	link := &DesignLink{}
	if raw != nil {
		if err := json.Unmarshal(raw, link); err != nil {
			return nil, errors.Wrap(err, "failed to decode design link")
		}
	}

	s.invalidateMetadata("design_link_created")
	return link, nil
}

// DeleteDesignLink removes a design link.
func (s *Service) DeleteDesignLink(ctx context.Context, linkID string) error {
	if linkID == "" {
		return errors.New("design link id is required")
	}

	if _, err := s.workspace.ActiveWorkspaceID(ctx); err != nil {
		return err
	}

	if _, err := s.api.Delete(ctx, backend.PathFigmaDesignLinks+"/"+url.PathEscape(linkID), nil); err != nil {
		return err
	}

	s.invalidateMetadata("design_link_deleted")
	return nil
}

// CompleteOAuth is the invalidation hook run after the OAuth popup
// reaches its terminal URL: stale tokens must never be served.
func (s *Service) CompleteOAuth(ctx context.Context) {
	s.invalidateMetadata("oauth_completed")
	s.renders.InvalidateAll()
	metrics.CacheInvalidationsTotal.WithLabelValues(renderCacheName, "oauth_completed").Inc()

	if s.bus != nil {
		s.bus.Publish(event.Event{Type: event.TypeOAuthCompleted})
	}
}

// InvalidateWorkspace clears the workspace-scoped caches. The render
// cache is keyed by file, not workspace, and deliberately survives.
func (s *Service) InvalidateWorkspace() {
	s.invalidateMetadata("workspace_changed")
}

// Sweep evicts expired entries from both caches.
func (s *Service) Sweep() {
	if n := s.metadata.Cache().Sweep(); n > 0 {
		metrics.CacheSweepEvictionsTotal.WithLabelValues(metadataCacheName).Add(float64(n))
	}
	if n := s.renders.Cache().Sweep(); n > 0 {
		metrics.CacheSweepEvictionsTotal.WithLabelValues(renderCacheName).Add(float64(n))
	}
}

func (s *Service) invalidateMetadata(reason string) {
	s.metadata.InvalidateAll()
	metrics.CacheInvalidationsTotal.WithLabelValues(metadataCacheName, reason).Inc()
	log.Debug("figma metadata cache invalidated", "reason", reason)

	if s.bus != nil {
		s.bus.Publish(event.Event{Type: event.TypeCacheInvalidated, Key: metadataCacheName})
	}
}

// findNode locates id in the document tree depth-first.
func findNode(root *figmaapi.Node, id string) *figmaapi.Node {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, child := range root.Children {
		if found := findNode(child, id); found != nil {
			return found
		}
	}
	return nil
}

// extractElements collects every visible descendant of frame that has
// a bounding box. The frame root itself is skipped, invisible subtrees
// are pruned, and nodes without a box still contribute their children.
func extractElements(frame *figmaapi.Node) []Element {
	elements := []Element{}

	var walk func(n *figmaapi.Node, depth int)
	walk = func(n *figmaapi.Node, depth int) {
		for _, child := range n.Children {
			if child.Hidden() {
				continue
			}
			if child.AbsoluteBoundingBox != nil {
				elements = append(elements, Element{
					ID:     child.ID,
					Name:   child.Name,
					Type:   child.Type,
					Bounds: *child.AbsoluteBoundingBox,
					Depth:  depth,
				})
			}
			walk(child, depth+1)
		}
	}
	walk(frame, 1)

	return elements
}
