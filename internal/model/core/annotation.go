// internal/model/core/annotation.go
package core

import "time"

// ShapeKind discriminates the annotation union. The set is closed: every
// switch over it in the geo, render and session packages carries a default
// arm returning ErrUnknownShape so a new kind cannot slip through silently.
type ShapeKind string

const (
	KindFreehand  ShapeKind = "freehand"
	KindRectangle ShapeKind = "rectangle"
	KindEllipse   ShapeKind = "ellipse"
	KindArrow     ShapeKind = "arrow"
	KindText      ShapeKind = "text"
	KindImage     ShapeKind = "image"
	KindClip      ShapeKind = "clip"
)

// Annotation is a drawn mark pinned to exactly one video frame. All geometric
// fields are fractions of the video's native dimensions, never viewport
// pixels, so an annotation renders in the same place on any screen.
//
// Which geometry fields are populated depends on Kind:
//
//	freehand           Points
//	rectangle, ellipse Center, Width, Height, Rotation
//	arrow              Start, End
//	text               Position, Text, FontSize
//	image, clip        Src, Center, Width, Height, Rotation (+ media metadata)
type Annotation struct {
	ID        ID        `json:"id"`
	VideoID   string    `json:"videoId"`
	AuthorID  string    `json:"authorId"`
	Frame     int       `json:"frame"`
	Kind      ShapeKind `json:"kind"`
	Color     string    `json:"color"`
	LineWidth float64   `json:"lineWidth"`
	CreatedAt time.Time `json:"createdAt"`

	Points   []Point `json:"points,omitempty"`
	Center   Point   `json:"center,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Rotation float64 `json:"rotation,omitempty"` // radians
	Start    Point   `json:"start,omitempty"`
	End      Point   `json:"end,omitempty"`
	Position Point   `json:"position,omitempty"`
	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"` // fraction of native height

	Src         string `json:"src,omitempty"`
	NaturalSize Size   `json:"naturalSize,omitempty"` // intrinsic pixels
	ByteSize    int64  `json:"byteSize,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// HasArea reports whether the kind is an area shape manipulated through
// center/width/height/rotation.
func (k ShapeKind) HasArea() bool {
	switch k {
	case KindRectangle, KindEllipse, KindImage, KindClip:
		return true
	}
	return false
}

// Degenerate reports whether the annotation is too small to keep: a freehand
// stroke needs at least two points, an arrow nonzero length, an area shape
// nonzero extent, a text annotation nonempty text. Degenerate shapes are
// discarded on pointer-up instead of being created.
func (a Annotation) Degenerate() bool {
	switch a.Kind {
	case KindFreehand:
		return len(a.Points) < 2
	case KindArrow:
		return a.Start == a.End
	case KindRectangle, KindEllipse, KindImage, KindClip:
		return a.Width <= 0 || a.Height <= 0
	case KindText:
		return a.Text == ""
	}
	return true
}

// Clone returns a deep copy. Point slices are the only reference field.
func (a Annotation) Clone() Annotation {
	out := a
	if a.Points != nil {
		out.Points = make([]Point, len(a.Points))
		copy(out.Points, a.Points)
	}
	return out
}
