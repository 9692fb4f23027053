package ws

import (
	"encoding/json"

	"github.com/framepoint/annotate/internal/model/core"
)

// Message type constants matching the collaboration protocol. Clients send
// join plus mutations; the server answers every mutation with an ack and
// pushes snapshots to everyone joined to the video.
const (
	TypeJoin              = "join"
	TypeSnapshot          = "snapshot"
	TypeCreateAnnotation  = "create_annotation"
	TypeUpdateAnnotations = "update_annotations"
	TypeDeleteAnnotations = "delete_annotations"
	TypeCreateComment     = "create_comment"
	TypeMoveComment       = "move_comment"
	TypeResolveComment    = "resolve_comment"
	TypeDeleteComments    = "delete_comments"
	TypeAck               = "ack"
)

// Ack error codes.
const (
	AckErrNotFound    = "not_found"
	AckErrTemporaryID = "temporary_id"
	AckErrInternal    = "internal"
)

// Envelope wraps all messages sent over the WebSocket. RequestID correlates
// a mutation with its ack; snapshots carry none.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// AckPayload is the server's response to one mutation.
type AckPayload struct {
	For      string `json:"for"`
	ID       string `json:"id,omitempty"`       // assigned id on create
	Resolved bool   `json:"resolved,omitempty"` // new flag on resolve_comment
	Error    string `json:"error,omitempty"`    // empty on success
}

// JoinPayload subscribes the connection to a video's snapshots.
type JoinPayload struct {
	VideoID string `json:"videoId"`
}

// SnapshotPayload carries one video's authoritative collections.
type SnapshotPayload struct {
	VideoID     string            `json:"videoId"`
	Annotations []core.Annotation `json:"annotations"`
	Comments    []core.Comment    `json:"comments"`
}

// CreateAnnotationPayload carries the shape to create. Any temporary id on it
// is discarded by the server.
type CreateAnnotationPayload struct {
	Annotation core.Annotation `json:"annotation"`
}

// UpdateAnnotationsPayload carries one logical batch of geometry updates.
type UpdateAnnotationsPayload struct {
	Annotations []core.Annotation `json:"annotations"`
}

// DeleteAnnotationsPayload names the annotations to remove.
type DeleteAnnotationsPayload struct {
	IDs []core.ID `json:"ids"`
}

// CreateCommentPayload carries the comment to create.
type CreateCommentPayload struct {
	Comment core.Comment `json:"comment"`
}

// MoveCommentPayload re-pins a comment marker.
type MoveCommentPayload struct {
	ID       core.ID    `json:"id"`
	Frame    int        `json:"frame"`
	Position core.Point `json:"position"`
}

// ResolveCommentPayload toggles the resolved flag.
type ResolveCommentPayload struct {
	ID core.ID `json:"id"`
}

// DeleteCommentsPayload names the comments to remove.
type DeleteCommentsPayload struct {
	IDs []core.ID `json:"ids"`
}
