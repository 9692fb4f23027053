// Package convert provides functions to convert GORM models to core models
package convert

import (
	"encoding/json"

	"github.com/framepoint/annotate/internal/model"
	"github.com/framepoint/annotate/internal/model/core"
)

// geometryDoc is the JSON layout of the Annotation.Geometry column. Only the
// fields relevant to the row's kind are populated.
type geometryDoc struct {
	Points   []core.Point `json:"points,omitempty"`
	Center   *core.Point  `json:"center,omitempty"`
	Width    float64      `json:"width,omitempty"`
	Height   float64      `json:"height,omitempty"`
	Rotation float64      `json:"rotation,omitempty"`
	Start    *core.Point  `json:"start,omitempty"`
	End      *core.Point  `json:"end,omitempty"`
	Position *core.Point  `json:"position,omitempty"`
}

// AnnotationToCore converts a row back into a core.Annotation.
func AnnotationToCore(row model.Annotation) core.Annotation {
	var doc geometryDoc
	if len(row.Geometry) > 0 {
		_ = json.Unmarshal(row.Geometry, &doc)
	}

	a := core.Annotation{
		ID:        core.ConfirmedID(row.ID),
		VideoID:   row.VideoID,
		AuthorID:  row.AuthorID,
		Frame:     row.Frame,
		Kind:      core.ShapeKind(row.Kind),
		Color:     row.Color,
		LineWidth: row.LineWidth,
		CreatedAt: row.CreatedAt,
		Points:    doc.Points,
		Width:     doc.Width,
		Height:    doc.Height,
		Rotation:  doc.Rotation,
		Text:      row.Text,
		FontSize:  row.FontSize,
		Src:       row.Src,
		NaturalSize: core.Size{
			Width:  row.NaturalWidth,
			Height: row.NaturalHeight,
		},
		ByteSize: row.ByteSize,
		MimeType: row.MimeType,
	}
	if doc.Center != nil {
		a.Center = *doc.Center
	}
	if doc.Start != nil {
		a.Start = *doc.Start
	}
	if doc.End != nil {
		a.End = *doc.End
	}
	if doc.Position != nil {
		a.Position = *doc.Position
	}
	return a
}

// CommentToCore converts a row back into a core.Comment.
func CommentToCore(row model.Comment) core.Comment {
	c := core.Comment{
		ID:         core.ConfirmedID(row.ID),
		VideoID:    row.VideoID,
		AuthorID:   row.AuthorID,
		AuthorName: row.AuthorName,
		AvatarURL:  row.AvatarURL,
		Text:       row.Text,
		Resolved:   row.Resolved,
		CreatedAt:  row.CreatedAt,
	}
	if row.ParentID.Valid {
		c.ParentID = core.ConfirmedID(row.ParentID.String)
	}
	if row.Frame.Valid {
		frame := int(row.Frame.Int64)
		c.Frame = &frame
	}
	if row.PositionX.Valid && row.PositionY.Valid {
		c.Position = &core.Point{X: row.PositionX.Float64, Y: row.PositionY.Float64}
	}
	return c
}
