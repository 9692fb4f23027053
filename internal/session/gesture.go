package session

import (
	"math"
	"time"

	"github.com/framepoint/annotate/internal/geo"
	"github.com/framepoint/annotate/internal/model/core"
)

// PointerDown opens a gesture for the active tool. Input is ignored until
// the container has been measured.
func (s *Session) PointerDown(p core.Point, shift bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverToIdle("PointerDown")

	if s.rect.IsZero() {
		return
	}
	s.gestureStart = time.Now()
	s.refreshIndexLocked()
	frame := s.ctx.Frame()
	n := geo.CanvasToNormalized(p, s.rect)

	switch s.tool {
	case ToolSelect:
		s.pointerDownSelect(p, frame, shift)
	case ToolText:
		s.state = &editingText{position: n}
	case ToolComment:
		// Point placement is the comment panel's flow; this engine only
		// converts the coordinates.
		if s.onPlaceComment != nil {
			s.onPlaceComment(frame, n)
		}
	case ToolFreehand, ToolRectangle, ToolEllipse, ToolArrow:
		s.state = &drawing{origin: n, draft: s.newDraft(n, frame)}
	}
	s.invalidateLocked()
}

func (s *Session) pointerDownSelect(p core.Point, frame int, shift bool) {
	selected := s.selectedAnnotations(frame)
	if h := geo.HandleUnderPoint(p, selected, s.rect, s.cfg.HitTolerancePx); h != geo.HandleNone {
		s.state = &transforming{ts: s.startTransform(h, p, selected)}
		return
	}

	// Comment markers sit on the overlay above the canvas, so they win over
	// annotation bodies.
	if c, ok := s.commentAt(p, frame); ok {
		s.state = &movingComment{original: c, origin: p}
		return
	}

	if a, ok := s.annotationAt(p, frame); ok {
		if shift {
			s.toggleSelection(a.ID)
			if !s.isSelected(a.ID) {
				s.state = idle{}
				return
			}
		} else if !s.isSelected(a.ID) {
			s.selection = []core.ID{a.ID}
		}
		sel := s.selectedAnnotations(frame)
		s.state = &transforming{ts: s.startTransform(geo.HandleNone, p, sel)}
		return
	}

	if !shift {
		s.selection = nil
	}
	s.state = &marqueeing{origin: p, current: p, additive: shift}
}

// startTransform opens a geo transform session with the configured resize
// floor applied.
func (s *Session) startTransform(h geo.Handle, p core.Point, selected []core.Annotation) geo.TransformSession {
	ts := geo.StartTransform(h, p, selected, s.rect)
	ts.MinSize = s.cfg.MinShapeSize
	return ts
}

func annotationIDs(items []core.Annotation) []core.ID {
	ids := make([]core.ID, len(items))
	for i, a := range items {
		ids[i] = a.ID
	}
	return ids
}

func (s *Session) newDraft(n core.Point, frame int) core.Annotation {
	a := core.Annotation{
		ID:        core.NewTemporaryID(),
		VideoID:   s.ctx.VideoID(),
		AuthorID:  s.authorID,
		Frame:     frame,
		Color:     s.style.Color,
		LineWidth: s.style.LineWidth,
		CreatedAt: time.Now(),
	}
	switch s.tool {
	case ToolFreehand:
		a.Kind = core.KindFreehand
		a.Points = []core.Point{n}
	case ToolRectangle:
		a.Kind = core.KindRectangle
		a.Center = n
	case ToolEllipse:
		a.Kind = core.KindEllipse
		a.Center = n
	case ToolArrow:
		a.Kind = core.KindArrow
		a.Start = n
		a.End = n
	}
	return a
}

// PointerMove advances the active gesture.
func (s *Session) PointerMove(p core.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverToIdle("PointerMove")

	if s.rect.IsZero() {
		return
	}
	n := geo.CanvasToNormalized(p, s.rect)

	switch st := s.state.(type) {
	case *drawing:
		switch st.draft.Kind {
		case core.KindFreehand:
			st.draft.Points = append(st.draft.Points, n)
		case core.KindRectangle, core.KindEllipse:
			r := core.RectFromPoints(st.origin, n)
			st.draft.Center = core.Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
			st.draft.Width = r.Width
			st.draft.Height = r.Height
		case core.KindArrow:
			st.draft.End = n
		}

	case *transforming:
		if p != st.ts.Anchor {
			st.moved = true
		}
		st.last = geo.ApplyTransform(p, st.ts, s.rect)
		s.rec.UpsertAnnotations(st.last)

	case *marqueeing:
		st.current = p

	case *movingComment:
		if !st.dragging {
			if math.Hypot(p.X-st.origin.X, p.Y-st.origin.Y) < s.cfg.DragThresholdPx {
				return
			}
			st.dragging = true
		}
		st.frame = s.ctx.Frame()
		st.position = n
		moved := st.original.Clone()
		moved.Frame = &st.frame
		moved.Position = &st.position
		s.rec.UpsertComments([]core.Comment{moved})

	default:
		return
	}
	s.invalidateLocked()
}

// gestureKind names a completed gesture for telemetry. Clicks that moved
// nothing are not gestures.
func gestureKind(st gesture) string {
	switch g := st.(type) {
	case *drawing:
		return "draw"
	case *transforming:
		if !g.moved {
			return ""
		}
		switch g.ts.Action {
		case geo.ActionResize:
			return "resize"
		case geo.ActionRotate:
			return "rotate"
		default:
			return "move"
		}
	case *marqueeing:
		if g.current == g.origin {
			return ""
		}
		return "marquee"
	case *movingComment:
		if g.dragging {
			return "comment-move"
		}
		return ""
	}
	return ""
}

// PointerUp finalizes the active gesture. Text editing survives pointer-up;
// everything else collapses to idle.
func (s *Session) PointerUp(p core.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverToIdle("PointerUp")

	kind := gestureKind(s.state)

	switch st := s.state.(type) {
	case *drawing:
		s.finishDrawing(st)

	case *transforming:
		if st.moved && len(st.last) > 0 {
			s.mut.UpdateAnnotations(st.last)
		} else if len(st.last) > 0 {
			// The pointer never left the anchor: the geometry is unchanged
			// and no mutation will acknowledge it.
			s.rec.SettleAnnotations(annotationIDs(st.last))
		}

	case *marqueeing:
		s.finishMarquee(st, p)

	case *movingComment:
		if st.dragging {
			s.mut.MoveComment(st.original.ID, st.frame, st.position)
		} else if s.onCommentClick != nil {
			s.onCommentClick(st.original.ID)
		}

	case *editingText:
		return

	default:
		return
	}
	if kind != "" && s.onGesture != nil && !s.gestureStart.IsZero() {
		s.onGesture(kind, time.Since(s.gestureStart))
	}
	s.state = idle{}
	s.invalidateLocked()
}

func (s *Session) finishDrawing(st *drawing) {
	if st.draft.Degenerate() {
		return
	}
	a := st.draft.Clone()
	s.rec.UpsertAnnotations([]core.Annotation{a})
	s.mut.CreateAnnotation(a)
	s.selection = []core.ID{a.ID}
}

func (s *Session) finishMarquee(st *marqueeing, p core.Point) {
	if s.rect.IsZero() {
		return
	}
	a := geo.CanvasToNormalized(st.origin, s.rect)
	b := geo.CanvasToNormalized(p, s.rect)
	box := core.RectFromPoints(a, b)

	frame := s.ctx.Frame()
	var hit []core.ID
	for _, ann := range s.index.AnnotationsAt(frame) {
		if geo.MarqueeIntersects(ann, box, s.rect) {
			hit = append(hit, ann.ID)
		}
	}
	if st.additive {
		for _, id := range hit {
			if !s.isSelected(id) {
				s.selection = append(s.selection, id)
			}
		}
	} else {
		s.selection = hit
	}
}

// PointerCancel discards the active gesture without emitting a mutation.
// Optimistic geometry written during the gesture reverts to its baseline.
func (s *Session) PointerCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverToIdle("PointerCancel")
	s.cancelLocked()
	s.invalidateLocked()
}

func (s *Session) cancelLocked() {
	switch st := s.state.(type) {
	case *transforming:
		// The originals equal the last confirmed geometry, so the ids settle
		// immediately; no store acknowledgement is coming for this gesture.
		if st.moved {
			s.rec.UpsertAnnotations(st.ts.Originals)
			s.rec.SettleAnnotations(annotationIDs(st.ts.Originals))
		}
	case *movingComment:
		if st.dragging {
			s.rec.UpsertComments([]core.Comment{st.original})
			s.rec.SettleComments([]core.ID{st.original.ID})
		}
	}
	s.state = idle{}
}

// Escape cancels like PointerCancel and additionally closes the inline text
// editor without creating an annotation.
func (s *Session) Escape() {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverToIdle("Escape")
	s.cancelLocked()
	s.invalidateLocked()
}

// DeleteSelection removes every selected annotation, as bound to the
// Delete/Backspace keys when focus is outside a text input.
func (s *Session) DeleteSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverToIdle("DeleteSelection")

	if len(s.selection) == 0 {
		return
	}
	ids := make([]core.ID, len(s.selection))
	copy(ids, s.selection)
	s.rec.RemoveAnnotations(ids)

	// A temporary id never reached the store; removing it locally is enough.
	confirmed := ids[:0]
	for _, id := range ids {
		if !id.IsTemporary() {
			confirmed = append(confirmed, id)
		}
	}
	if len(confirmed) > 0 {
		s.mut.DeleteAnnotations(confirmed)
	}
	s.selection = nil
	s.invalidateLocked()
}

// CommitText closes the inline text editor, creating a text annotation when
// the text is nonempty.
func (s *Session) CommitText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverToIdle("CommitText")

	st, ok := s.state.(*editingText)
	if !ok {
		return
	}
	s.state = idle{}
	if text == "" {
		s.invalidateLocked()
		return
	}

	fontSize := s.style.FontSize
	if fontSize <= 0 {
		fontSize = DefaultStyle.FontSize
	}
	a := core.Annotation{
		ID:        core.NewTemporaryID(),
		VideoID:   s.ctx.VideoID(),
		AuthorID:  s.authorID,
		Frame:     s.ctx.Frame(),
		Kind:      core.KindText,
		Color:     s.style.Color,
		LineWidth: s.style.LineWidth,
		CreatedAt: time.Now(),
		Position:  st.position,
		Text:      text,
		FontSize:  fontSize,
	}
	s.rec.UpsertAnnotations([]core.Annotation{a})
	s.mut.CreateAnnotation(a)
	s.selection = []core.ID{a.ID}
	s.invalidateLocked()
}

// DropImage creates an image annotation at the drop point, sized to a
// default fraction of the video width at the image's natural aspect ratio.
// An undecodable image (zero natural size) is silently ignored.
func (s *Session) DropImage(p core.Point, src string, natural core.Size, byteSize int64, mimeType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.recoverToIdle("DropImage")

	native := s.ctx.NativeSize()
	if s.rect.IsZero() || natural.Width <= 0 || natural.Height <= 0 ||
		native.Width <= 0 || native.Height <= 0 || src == "" {
		return
	}

	widthFraction := s.cfg.ImageDropWidthFraction
	if widthFraction <= 0 {
		widthFraction = 0.25
	}
	// Normalized height that keeps the image's on-screen aspect ratio.
	height := widthFraction * (natural.Height / natural.Width) * (native.Width / native.Height)

	a := core.Annotation{
		ID:          core.NewTemporaryID(),
		VideoID:     s.ctx.VideoID(),
		AuthorID:    s.authorID,
		Frame:       s.ctx.Frame(),
		Kind:        core.KindImage,
		Color:       s.style.Color,
		LineWidth:   s.style.LineWidth,
		CreatedAt:   time.Now(),
		Center:      geo.CanvasToNormalized(p, s.rect),
		Width:       widthFraction,
		Height:      height,
		Src:         src,
		NaturalSize: natural,
		ByteSize:    byteSize,
		MimeType:    mimeType,
	}
	s.rec.UpsertAnnotations([]core.Annotation{a})
	s.mut.CreateAnnotation(a)
	s.selection = []core.ID{a.ID}
	s.invalidateLocked()
}
