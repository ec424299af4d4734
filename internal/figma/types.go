package figma

import "github.com/pixzlo/bridge/internal/figmaapi"

// Token statuses reported by the backend for the stored Figma access
// token.
const (
	TokenValid   = "valid"
	TokenMissing = "missing"
	TokenExpired = "expired"
	TokenInvalid = "invalid"
)

// AccessToken is the short-lived Figma token held by the backend on
// the user's behalf.
type AccessToken struct {
	Token  string `json:"token"`
	Status string `json:"status"`
}

// Website describes the site the current page belongs to.
type Website struct {
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// DesignLink associates a website URL with a specific Figma frame.
type DesignLink struct {
	ID         string `json:"id"`
	WebsiteURL string `json:"website_url"`
	FigmaURL   string `json:"figma_url"`
	FrameName  string `json:"frame_name"`
}

// FramePreference is the user's last-used frame.
type FramePreference struct {
	FileID    string `json:"file_id"`
	NodeID    string `json:"node_id"`
	FrameName string `json:"frame_name"`
}

// Metadata is the workspace-scoped Figma integration state.
type Metadata struct {
	Connected     bool             `json:"connected"`
	AccessToken   *AccessToken     `json:"access_token,omitempty"`
	Website       *Website         `json:"website,omitempty"`
	DesignLinks   []DesignLink     `json:"design_links"`
	LastUsedFrame *FramePreference `json:"last_used_frame,omitempty"`
}

// Status is the condensed connection state for status checks.
type Status struct {
	Connected   bool   `json:"connected"`
	TokenStatus string `json:"tokenStatus,omitempty"`
}

// Element is one extracted descendant of a rendered frame.
type Element struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Type   string        `json:"type"`
	Bounds figmaapi.Rect `json:"bounds"`
	Depth  int           `json:"depth"`
}

// FrameRender is the cached composite result of rendering one frame.
type FrameRender struct {
	FileID    string         `json:"fileId"`
	NodeID    string         `json:"nodeId"`
	FrameName string         `json:"frameName"`
	Node      *figmaapi.Node `json:"node"`
	Elements  []Element      `json:"elements"`
	ImageURL  string         `json:"imageUrl"`
}

// MetadataRequest scopes a metadata fetch. WorkspaceID overrides the
// resolved workspace; Force bypasses the cache.
type MetadataRequest struct {
	WebsiteURL  string `json:"websiteUrl"`
	Force       bool   `json:"force"`
	WorkspaceID string `json:"workspaceId"`
}

// PreferenceRequest updates the last-used frame.
type PreferenceRequest struct {
	FileID    string `json:"fileId"`
	NodeID    string `json:"nodeId"`
	FrameName string `json:"frameName"`
}

// DesignLinkRequest creates a design link.
type DesignLinkRequest struct {
	WebsiteURL string `json:"websiteUrl"`
	FigmaURL   string `json:"figmaUrl"`
	FrameName  string `json:"frameName"`
}
