package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists the structs migrated as tables by the persistence
// backends.
var DatabaseModels = []interface{}{
	&Annotation{},
	&Comment{},
}

// Annotation is the row form of a core.Annotation. Shape geometry is stored
// as a JSON column: the normalized coordinates are opaque to SQL (nothing
// queries inside a shape), and one column serves the whole kind union.
type Annotation struct {
	ID        string `gorm:"primarykey"`
	VideoID   string `gorm:"index:idx_annotations_video_frame"`
	Frame     int    `gorm:"index:idx_annotations_video_frame"`
	AuthorID  string
	Kind      string
	Color     string
	LineWidth float64
	Geometry  datatypes.JSON

	Text     string
	FontSize float64

	Src           string
	NaturalWidth  float64
	NaturalHeight float64
	ByteSize      int64
	MimeType      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Comment is the row form of a core.Comment. Frame and position are nullable
// because a comment may be pinned to a frame, a point on a frame, or nothing.
type Comment struct {
	ID         string `gorm:"primarykey"`
	VideoID    string `gorm:"index"`
	AuthorID   string
	AuthorName string
	AvatarURL  string
	ParentID   sql.NullString `gorm:"index"`
	Text       string
	Frame      sql.NullInt64
	PositionX  sql.NullFloat64
	PositionY  sql.NullFloat64
	Resolved   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
