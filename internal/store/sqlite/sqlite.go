// Package sqlitestore implements the store contract on a SQLite database via
// GORM. It serves two roles: local persistence for offline review, and the
// storage layer behind the reviewd collaboration hub. Subscriptions are
// process-local: every successful write rebroadcasts the affected video's
// snapshot to subscribers.
package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/framepoint/annotate/internal/database"
	"github.com/framepoint/annotate/internal/model"
	"github.com/framepoint/annotate/internal/model/convert"
	"github.com/framepoint/annotate/internal/model/core"
	"github.com/framepoint/annotate/internal/store"
)

// Config holds configuration for the SQLite store backend.
type Config struct {
	Path string // empty means in-memory
}

// Backend persists annotations and comments through GORM.
type Backend struct {
	db  *gorm.DB
	cfg Config

	mu   sync.Mutex
	subs map[string][]chan store.Snapshot
}

// New creates a new SQLite store backend.
func New(cfg Config) (*Backend, error) {
	db, err := database.OpenSqlite(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	return &Backend{
		db:   db,
		cfg:  cfg,
		subs: make(map[string][]chan store.Snapshot),
	}, nil
}

// NewWithDB wraps an existing GORM connection (the reviewd hub shares its
// database manager's connection).
func NewWithDB(db *gorm.DB) *Backend {
	return &Backend{
		db:   db,
		subs: make(map[string][]chan store.Snapshot),
	}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases subscriptions and the database handle.
func (b *Backend) Close() error {
	b.mu.Lock()
	for _, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subs = make(map[string][]chan store.Snapshot)
	b.mu.Unlock()

	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateAnnotation inserts a new row under a freshly issued id.
func (b *Backend) CreateAnnotation(ctx context.Context, a core.Annotation) (core.ID, error) {
	a.ID = core.ConfirmedID(uuid.New().String())
	row := convert.CoreToAnnotation(a)
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return core.ID{}, fmt.Errorf("create annotation: %w", err)
	}
	b.broadcast(ctx, a.VideoID)
	return a.ID, nil
}

// UpdateAnnotations saves the whole batch in one transaction.
func (b *Backend) UpdateAnnotations(ctx context.Context, annotations []core.Annotation) error {
	if len(annotations) == 0 {
		return nil
	}
	for _, a := range annotations {
		if a.ID.IsTemporary() {
			return store.ErrTemporaryID
		}
	}
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range annotations {
			row := convert.CoreToAnnotation(a)
			res := tx.Model(&model.Annotation{}).Where("id = ?", row.ID).Updates(map[string]any{
				"frame":      row.Frame,
				"color":      row.Color,
				"line_width": row.LineWidth,
				"geometry":   row.Geometry,
				"text":       row.Text,
				"font_size":  row.FontSize,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return store.ErrNotFound
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("update annotations: %w", err)
	}
	b.broadcast(ctx, annotations[0].VideoID)
	return nil
}

// DeleteAnnotations removes the given ids.
func (b *Backend) DeleteAnnotations(ctx context.Context, ids []core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		if id.IsTemporary() {
			return store.ErrTemporaryID
		}
		raw = append(raw, id.String())
	}

	var videoIDs []string
	b.db.WithContext(ctx).Model(&model.Annotation{}).
		Where("id IN ?", raw).Distinct().Pluck("video_id", &videoIDs)

	if err := b.db.WithContext(ctx).Where("id IN ?", raw).Delete(&model.Annotation{}).Error; err != nil {
		return fmt.Errorf("delete annotations: %w", err)
	}
	for _, videoID := range videoIDs {
		b.broadcast(ctx, videoID)
	}
	return nil
}

// CreateComment inserts a new comment row under a freshly issued id.
func (b *Backend) CreateComment(ctx context.Context, c core.Comment) (core.ID, error) {
	c.ID = core.ConfirmedID(uuid.New().String())
	row := convert.CoreToComment(c)
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return core.ID{}, fmt.Errorf("create comment: %w", err)
	}
	b.broadcast(ctx, c.VideoID)
	return c.ID, nil
}

// UpdateCommentPosition re-pins a comment marker.
func (b *Backend) UpdateCommentPosition(ctx context.Context, id core.ID, frame int, position core.Point) error {
	if id.IsTemporary() {
		return store.ErrTemporaryID
	}
	res := b.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id.String()).Updates(map[string]any{
		"frame":      frame,
		"position_x": position.X,
		"position_y": position.Y,
	})
	if res.Error != nil {
		return fmt.Errorf("update comment position: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	b.broadcastByComment(ctx, id)
	return nil
}

// ToggleCommentResolved flips the resolved flag and returns the new value.
func (b *Backend) ToggleCommentResolved(ctx context.Context, id core.ID) (bool, error) {
	if id.IsTemporary() {
		return false, store.ErrTemporaryID
	}
	var row model.Comment
	if err := b.db.WithContext(ctx).First(&row, "id = ?", id.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, store.ErrNotFound
		}
		return false, fmt.Errorf("load comment: %w", err)
	}
	row.Resolved = !row.Resolved
	if err := b.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", row.ID).
		Update("resolved", row.Resolved).Error; err != nil {
		return false, fmt.Errorf("toggle resolved: %w", err)
	}
	b.broadcast(ctx, row.VideoID)
	return row.Resolved, nil
}

// DeleteComments removes the given comment ids.
func (b *Backend) DeleteComments(ctx context.Context, ids []core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		if id.IsTemporary() {
			return store.ErrTemporaryID
		}
		raw = append(raw, id.String())
	}

	var videoIDs []string
	b.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id IN ?", raw).Distinct().Pluck("video_id", &videoIDs)

	if err := b.db.WithContext(ctx).Where("id IN ?", raw).Delete(&model.Comment{}).Error; err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	for _, videoID := range videoIDs {
		b.broadcast(ctx, videoID)
	}
	return nil
}

// Load returns the current snapshot for a video, in creation order.
func (b *Backend) Load(ctx context.Context, videoID string) (store.Snapshot, error) {
	var annotationRows []model.Annotation
	if err := b.db.WithContext(ctx).Where("video_id = ?", videoID).
		Order("created_at, id").Find(&annotationRows).Error; err != nil {
		return store.Snapshot{}, fmt.Errorf("load annotations: %w", err)
	}
	var commentRows []model.Comment
	if err := b.db.WithContext(ctx).Where("video_id = ?", videoID).
		Order("created_at, id").Find(&commentRows).Error; err != nil {
		return store.Snapshot{}, fmt.Errorf("load comments: %w", err)
	}

	snap := store.Snapshot{
		Annotations: make([]core.Annotation, len(annotationRows)),
		Comments:    make([]core.Comment, len(commentRows)),
	}
	for i, row := range annotationRows {
		snap.Annotations[i] = convert.AnnotationToCore(row)
	}
	for i, row := range commentRows {
		snap.Comments[i] = convert.CommentToCore(row)
	}
	return snap, nil
}

// Subscribe registers a snapshot channel for the video.
func (b *Backend) Subscribe(videoID string) (<-chan store.Snapshot, func()) {
	ch := make(chan store.Snapshot, 1)

	b.mu.Lock()
	b.subs[videoID] = append(b.subs[videoID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[videoID]
		for i, c := range subs {
			if c == ch {
				b.subs[videoID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (b *Backend) broadcastByComment(ctx context.Context, id core.ID) {
	var row model.Comment
	if err := b.db.WithContext(ctx).Select("video_id").First(&row, "id = ?", id.String()).Error; err != nil {
		return
	}
	b.broadcast(ctx, row.VideoID)
}

// broadcast pushes a fresh snapshot to every subscriber of the video,
// dropping stale intermediate snapshots for slow consumers.
func (b *Backend) broadcast(ctx context.Context, videoID string) {
	b.mu.Lock()
	subs := append([]chan store.Snapshot(nil), b.subs[videoID]...)
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	snap, err := b.Load(ctx, videoID)
	if err != nil {
		return
	}
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
