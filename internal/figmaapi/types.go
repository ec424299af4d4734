package figmaapi

// Rect is an absolute bounding box in Figma canvas coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Node is one node of a Figma document tree. Visible is a pointer
// because Figma omits the field for visible nodes.
type Node struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Type                string  `json:"type"`
	Visible             *bool   `json:"visible,omitempty"`
	AbsoluteBoundingBox *Rect   `json:"absoluteBoundingBox,omitempty"`
	Children            []*Node `json:"children,omitempty"`
}

// Hidden reports whether the node is explicitly invisible.
func (n *Node) Hidden() bool {
	return n.Visible != nil && !*n.Visible
}

// File is the subset of the Figma file payload the bridge consumes.
type File struct {
	Name     string `json:"name"`
	Document *Node  `json:"document"`
}

type imagesResponse struct {
	Err    *string           `json:"err"`
	Images map[string]string `json:"images"`
}
