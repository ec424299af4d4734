// Package workspace resolves the active workspace scoping every
// backend call. Precedence is load-bearing: a persisted explicit
// selection always wins over the auto-picked first active workspace
// from the user's profile, and the auto-pick is persisted so it never
// silently changes between calls.
package workspace

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pixzlo/bridge/internal/backend"
	"github.com/pixzlo/bridge/internal/store"
	"github.com/pixzlo/bridge/pkg/cache"
	"github.com/pixzlo/bridge/pkg/dedup"
	"github.com/pixzlo/bridge/pkg/log"
	"github.com/pkg/errors"
)

// ErrNoWorkspace is surfaced verbatim to the UI layer when no
// workspace can be resolved.
var ErrNoWorkspace = errors.New("No workspace selected. Please select a workspace in Pixzlo.")

const profileKey = "profile"

// Workspace is one workspace membership from the user's profile. The
// backend has shipped two shapes over time, so both id and slug carry
// a historical alias.
type Workspace struct {
	ID            string `json:"id"`
	WorkspaceID   string `json:"workspace_id"`
	Slug          string `json:"slug"`
	WorkspaceSlug string `json:"workspace_slug"`
	Name          string `json:"name"`
	Status        string `json:"status"`
}

// CanonicalID reconciles the two historical id fields.
func (w Workspace) CanonicalID() string {
	if w.ID != "" {
		return w.ID
	}
	return w.WorkspaceID
}

// CanonicalSlug reconciles the two historical slug fields.
func (w Workspace) CanonicalSlug() string {
	if w.Slug != "" {
		return w.Slug
	}
	return w.WorkspaceSlug
}

// Active reports whether the workspace is eligible for auto-selection.
func (w Workspace) Active() bool {
	return w.Status == "active"
}

// Profile is the cached slice of the user profile the resolver needs.
type Profile struct {
	Workspaces []Workspace `json:"workspaces"`
}

// Settings is the persisted selection store.
type Settings interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// API is the backend surface the resolver consumes.
type API interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
}

// Resolver determines the active workspace for the current user.
type Resolver struct {
	settings Settings
	api      API
	profiles *dedup.Fetcher[*Profile]
}

// New creates a Resolver. profileTTL bounds how long workspace
// membership may be served stale; keep it short.
func New(settings Settings, api API, profileTTL time.Duration) *Resolver {
	return &Resolver{
		settings: settings,
		api:      api,
		profiles: dedup.NewFetcher(cache.New[*Profile](profileTTL)),
	}
}

// Profile returns the user's profile, cached and deduplicated.
func (r *Resolver) Profile(ctx context.Context) (*Profile, error) {
	return r.profiles.GetOrFetch(profileKey, func() (*Profile, error) {
		raw, err := r.api.Get(ctx, backend.PathProfile)
		if err != nil {
			return nil, err
		}

		profile := &Profile{}
		if raw == nil {
			return profile, nil
		}

		if err := json.Unmarshal(raw, profile); err != nil {
			return nil, errors.Wrap(err, "failed to decode user profile")
		}
		return profile, nil
	})
}

// ActiveWorkspaceID resolves the active workspace id: persisted
// selection first, else the first active workspace from the profile,
// which is persisted as a side effect so subsequent calls
// short-circuit on the storage read.
func (r *Resolver) ActiveWorkspaceID(ctx context.Context) (string, error) {
	if id, ok, err := r.settings.Get(store.KeySelectedWorkspace); err != nil {
		return "", err
	} else if ok && id != "" {
		return id, nil
	}

	profile, err := r.Profile(ctx)
	if err != nil {
		return "", err
	}

	for _, w := range profile.Workspaces {
		if !w.Active() {
			continue
		}

		id := w.CanonicalID()
		if id == "" {
			continue
		}

		if err := r.settings.Set(store.KeySelectedWorkspace, id); err != nil {
			log.Warn("failed to persist auto-selected workspace", "workspace_id", id, "error", err)
		}
		return id, nil
	}

	return "", ErrNoWorkspace
}

// Slug resolves the active workspace and returns its slug from the
// cached profile.
func (r *Resolver) Slug(ctx context.Context) (string, error) {
	id, err := r.ActiveWorkspaceID(ctx)
	if err != nil {
		return "", err
	}

	profile, err := r.Profile(ctx)
	if err != nil {
		return "", err
	}

	for _, w := range profile.Workspaces {
		if w.CanonicalID() == id {
			return w.CanonicalSlug(), nil
		}
	}

	return "", errors.Errorf("workspace %s not present in profile", id)
}

// Select persists an explicit workspace choice. The storage write
// publishes the change event that invalidates workspace-scoped caches.
func (r *Resolver) Select(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("workspace id is required")
	}
	return r.settings.Set(store.KeySelectedWorkspace, id)
}

// Workspaces lists the workspaces on the user's profile.
func (r *Resolver) Workspaces(ctx context.Context) ([]Workspace, error) {
	profile, err := r.Profile(ctx)
	if err != nil {
		return nil, err
	}
	return profile.Workspaces, nil
}

// InvalidateProfile drops the cached profile so the next read
// refetches workspace membership. An in-flight profile fetch still
// settles for its callers but no longer populates the cache.
func (r *Resolver) InvalidateProfile() {
	r.profiles.InvalidateAll()
}
