// Package ws implements the store contract over a WebSocket connection to a
// reviewd collaboration hub. Mutations are request/ack round trips; the
// authoritative state arrives as server-pushed snapshots which feed the
// reconcile loop.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/framepoint/annotate/internal/model/core"
	"github.com/framepoint/annotate/internal/store"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend implements the store contract against a remote hub.
type Backend struct {
	conn *connection
	cfg  Config

	mu   sync.Mutex
	subs map[string][]chan store.Snapshot
}

// New creates a new WebSocket store backend.
func New(cfg Config) *Backend {
	b := &Backend{
		cfg:  cfg,
		subs: make(map[string][]chan store.Snapshot),
	}
	b.conn = newConnection(slog.Default(), b.handleSnapshot)
	return b
}

// Init connects to the hub.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects and releases subscriptions.
func (b *Backend) Close() error {
	err := b.conn.close()

	b.mu.Lock()
	for _, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subs = make(map[string][]chan store.Snapshot)
	b.mu.Unlock()

	return err
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type,
// request id and payload.
func marshalEnvelope(msgType, requestID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := Envelope{Type: msgType, RequestID: requestID, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// roundTrip sends a mutation and waits for its ack, honoring ctx.
func (b *Backend) roundTrip(ctx context.Context, msgType string, payload any) (AckPayload, error) {
	requestID := uuid.New().String()
	data, err := marshalEnvelope(msgType, requestID, payload)
	if err != nil {
		return AckPayload{}, err
	}

	timeout := ackTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	ack, err := b.conn.request(requestID, data, timeout)
	if err != nil {
		return AckPayload{}, err
	}
	return ack, ackError(ack)
}

// ackError maps the wire error code back to the store sentinel errors.
func ackError(ack AckPayload) error {
	switch ack.Error {
	case "":
		return nil
	case AckErrNotFound:
		return store.ErrNotFound
	case AckErrTemporaryID:
		return store.ErrTemporaryID
	default:
		return fmt.Errorf("server rejected %s: %s", ack.For, ack.Error)
	}
}

// CreateAnnotation sends the shape and returns the id the hub assigned.
func (b *Backend) CreateAnnotation(ctx context.Context, a core.Annotation) (core.ID, error) {
	ack, err := b.roundTrip(ctx, TypeCreateAnnotation, CreateAnnotationPayload{Annotation: a})
	if err != nil {
		return core.ID{}, err
	}
	if ack.ID == "" {
		return core.ID{}, fmt.Errorf("create ack carried no id")
	}
	return core.ConfirmedID(ack.ID), nil
}

// UpdateAnnotations sends one logical batch of geometry updates.
func (b *Backend) UpdateAnnotations(ctx context.Context, annotations []core.Annotation) error {
	if len(annotations) == 0 {
		return nil
	}
	for _, a := range annotations {
		if a.ID.IsTemporary() {
			return store.ErrTemporaryID
		}
	}
	_, err := b.roundTrip(ctx, TypeUpdateAnnotations, UpdateAnnotationsPayload{Annotations: annotations})
	return err
}

// DeleteAnnotations removes the given ids.
func (b *Backend) DeleteAnnotations(ctx context.Context, ids []core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if id.IsTemporary() {
			return store.ErrTemporaryID
		}
	}
	_, err := b.roundTrip(ctx, TypeDeleteAnnotations, DeleteAnnotationsPayload{IDs: ids})
	return err
}

// CreateComment sends the comment and returns the id the hub assigned.
func (b *Backend) CreateComment(ctx context.Context, c core.Comment) (core.ID, error) {
	ack, err := b.roundTrip(ctx, TypeCreateComment, CreateCommentPayload{Comment: c})
	if err != nil {
		return core.ID{}, err
	}
	if ack.ID == "" {
		return core.ID{}, fmt.Errorf("create ack carried no id")
	}
	return core.ConfirmedID(ack.ID), nil
}

// UpdateCommentPosition re-pins a comment marker.
func (b *Backend) UpdateCommentPosition(ctx context.Context, id core.ID, frame int, position core.Point) error {
	if id.IsTemporary() {
		return store.ErrTemporaryID
	}
	_, err := b.roundTrip(ctx, TypeMoveComment, MoveCommentPayload{ID: id, Frame: frame, Position: position})
	return err
}

// ToggleCommentResolved flips the resolved flag and returns the new value.
func (b *Backend) ToggleCommentResolved(ctx context.Context, id core.ID) (bool, error) {
	if id.IsTemporary() {
		return false, store.ErrTemporaryID
	}
	ack, err := b.roundTrip(ctx, TypeResolveComment, ResolveCommentPayload{ID: id})
	if err != nil {
		return false, err
	}
	return ack.Resolved, nil
}

// DeleteComments removes the given comment ids.
func (b *Backend) DeleteComments(ctx context.Context, ids []core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if id.IsTemporary() {
			return store.ErrTemporaryID
		}
	}
	_, err := b.roundTrip(ctx, TypeDeleteComments, DeleteCommentsPayload{IDs: ids})
	return err
}

// join subscribes the connection to the video's snapshot stream and caches
// the message for reconnect replay.
func (b *Backend) join(videoID string) error {
	data, err := marshalEnvelope(TypeJoin, "", JoinPayload{VideoID: videoID})
	if err != nil {
		return err
	}
	b.conn.cacheJoin(videoID, data)
	b.conn.send(data)
	return nil
}

// Load joins the video and waits for the first snapshot the hub pushes.
func (b *Backend) Load(ctx context.Context, videoID string) (store.Snapshot, error) {
	ch, cancel := b.Subscribe(videoID)
	defer cancel()

	if err := b.join(videoID); err != nil {
		return store.Snapshot{}, err
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()

	select {
	case snap, ok := <-ch:
		if !ok {
			return store.Snapshot{}, fmt.Errorf("connection closed while loading %s", videoID)
		}
		return snap, nil
	case <-timer.C:
		return store.Snapshot{}, fmt.Errorf("timeout loading snapshot for %s", videoID)
	case <-ctx.Done():
		return store.Snapshot{}, ctx.Err()
	}
}

// Subscribe registers a snapshot channel for the video. The server is joined
// lazily so reconnects resume delivery.
func (b *Backend) Subscribe(videoID string) (<-chan store.Snapshot, func()) {
	ch := make(chan store.Snapshot, 1)

	b.mu.Lock()
	first := len(b.subs[videoID]) == 0
	b.subs[videoID] = append(b.subs[videoID], ch)
	b.mu.Unlock()

	if first {
		_ = b.join(videoID)
	}

	cancel := func() {
		b.mu.Lock()
		subs := b.subs[videoID]
		for i, c := range subs {
			if c == ch {
				b.subs[videoID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		last := len(b.subs[videoID]) == 0
		if last {
			delete(b.subs, videoID)
		}
		b.mu.Unlock()
		if last {
			b.conn.dropJoin(videoID)
		}
	}
	return ch, cancel
}

// handleSnapshot fans a server-pushed snapshot out to the video's
// subscribers, latest state winning over unread intermediates.
func (b *Backend) handleSnapshot(payload SnapshotPayload) {
	snap := store.Snapshot{
		Annotations: payload.Annotations,
		Comments:    payload.Comments,
	}

	b.mu.Lock()
	subs := append([]chan store.Snapshot(nil), b.subs[payload.VideoID]...)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
