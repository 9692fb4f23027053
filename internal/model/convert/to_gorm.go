// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/framepoint/annotate/internal/model"
	"github.com/framepoint/annotate/internal/model/core"
)

// geometryToJSON serializes the kind-dependent geometry fields into the
// Geometry column document.
func geometryToJSON(a core.Annotation) datatypes.JSON {
	doc := geometryDoc{
		Width:    a.Width,
		Height:   a.Height,
		Rotation: a.Rotation,
	}
	switch a.Kind {
	case core.KindFreehand:
		doc.Points = a.Points
	case core.KindRectangle, core.KindEllipse, core.KindImage, core.KindClip:
		center := a.Center
		doc.Center = &center
	case core.KindArrow:
		start, end := a.Start, a.End
		doc.Start = &start
		doc.End = &end
	case core.KindText:
		position := a.Position
		doc.Position = &position
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToAnnotation converts a core.Annotation to its row form.
func CoreToAnnotation(a core.Annotation) model.Annotation {
	return model.Annotation{
		ID:            a.ID.String(),
		VideoID:       a.VideoID,
		AuthorID:      a.AuthorID,
		Frame:         a.Frame,
		Kind:          string(a.Kind),
		Color:         a.Color,
		LineWidth:     a.LineWidth,
		Geometry:      geometryToJSON(a),
		Text:          a.Text,
		FontSize:      a.FontSize,
		Src:           a.Src,
		NaturalWidth:  a.NaturalSize.Width,
		NaturalHeight: a.NaturalSize.Height,
		ByteSize:      a.ByteSize,
		MimeType:      a.MimeType,
		CreatedAt:     a.CreatedAt,
	}
}

// CoreToComment converts a core.Comment to its row form.
func CoreToComment(c core.Comment) model.Comment {
	row := model.Comment{
		ID:         c.ID.String(),
		VideoID:    c.VideoID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		AvatarURL:  c.AvatarURL,
		Text:       c.Text,
		Resolved:   c.Resolved,
		CreatedAt:  c.CreatedAt,
	}
	if !c.ParentID.IsZero() {
		row.ParentID = sql.NullString{String: c.ParentID.String(), Valid: true}
	}
	if c.Frame != nil {
		row.Frame = sql.NullInt64{Int64: int64(*c.Frame), Valid: true}
	}
	if c.Position != nil {
		row.PositionX = sql.NullFloat64{Float64: c.Position.X, Valid: true}
		row.PositionY = sql.NullFloat64{Float64: c.Position.Y, Valid: true}
	}
	return row
}
