package figma

import (
	"net/url"
	"strings"
)

// FrameRef identifies a renderable frame inside a Figma file.
type FrameRef struct {
	FileID string
	NodeID string
}

// ParseFrameURL extracts the file and node ids from a shared Figma
// URL. Both current URL shapes are supported: /design/<fileID>/...
// and the older /file/<fileID>/... The node-id query parameter uses
// dashes externally but colons in Figma's node-id syntax, so 119-1968
// becomes 119:1968. Missing pieces are returned empty; callers decide
// which parts are required.
func ParseFrameURL(raw string) FrameRef {
	var ref FrameRef

	u, err := url.Parse(raw)
	if err != nil {
		return ref
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if (seg == "design" || seg == "file") && i+1 < len(segments) {
			ref.FileID = segments[i+1]
			break
		}
	}

	if nodeID := u.Query().Get("node-id"); nodeID != "" {
		ref.NodeID = strings.ReplaceAll(nodeID, "-", ":")
	}

	return ref
}
