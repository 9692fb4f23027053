// internal/model/core/comment.go
package core

import "time"

// Comment is a discussion entry on a video. A comment may be spatially pinned
// (Frame and Position both set), pinned to a frame only, or global to the
// video. Replies reference their parent through ParentID.
type Comment struct {
	ID         ID        `json:"id"`
	VideoID    string    `json:"videoId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	AvatarURL  string    `json:"avatarUrl,omitempty"`
	ParentID   ID        `json:"parentId,omitempty"`
	Text       string    `json:"text"`
	Frame      *int      `json:"frame,omitempty"`
	Position   *Point    `json:"position,omitempty"` // normalized
	Resolved   bool      `json:"resolved"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Pinned reports whether the comment has a spatial marker on the canvas.
func (c Comment) Pinned() bool {
	return c.Frame != nil && c.Position != nil
}

// Clone returns a deep copy including the optional pointer fields.
func (c Comment) Clone() Comment {
	out := c
	if c.Frame != nil {
		f := *c.Frame
		out.Frame = &f
	}
	if c.Position != nil {
		p := *c.Position
		out.Position = &p
	}
	return out
}
