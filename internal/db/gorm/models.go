package gorm

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// SessionRow is one viewing session of one slide by one user.
type SessionRow struct {
	ID                 string `gorm:"primaryKey"`
	UserID             string `gorm:"index:idx_sessions_user_slide,priority:1;not null"`
	SlideID            string `gorm:"index:idx_sessions_user_slide,priority:2;not null"`
	AttemptNumber      int    `gorm:"default:1;not null"`
	StartedAt          string `gorm:"not null"`
	StartedAtEpoch     int64  `gorm:"index:idx_sessions_started,sort:desc;not null"`
	LastStartedAtEpoch sql.NullInt64
	CompletedAt        sql.NullString
	CompletedAtEpoch   sql.NullInt64
	Label              sql.NullString `gorm:"type:text"`
}

func (SessionRow) TableName() string { return "sessions" }

// BeforeCreate hook to ensure timestamps are set.
func (s *SessionRow) BeforeCreate(tx *gorm.DB) error {
	if s.StartedAtEpoch == 0 {
		s.StartedAtEpoch = time.Now().UnixMilli()
	}
	if s.StartedAt == "" {
		s.StartedAt = time.Now().Format(time.RFC3339)
	}
	if s.AttemptNumber == 0 {
		s.AttemptNumber = 1
	}
	return nil
}

// EventRow is one persisted interaction event. Coordinates are level-0
// pixels; nullable columns mirror the optional wire fields.
type EventRow struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	SessionID      string `gorm:"index:idx_events_session_ts,priority:1;not null"`
	UserID         string `gorm:"index;not null"`
	SlideID        string `gorm:"index;not null"`
	Timestamp      string `gorm:"not null"`
	TimestampEpoch int64  `gorm:"index:idx_events_session_ts,priority:2;not null"`
	Kind           string `gorm:"type:text;check:kind IN ('session_start', 'slide_ready', 'click_zoom_in', 'zoom_transition', 'pan', 'zoom_out_step', 'undo_step', 'reset_to_fit', 'label_chosen', 'session_end');not null"`

	// Viewport snapshot (null on viewportless events)
	BoundsLeft   sql.NullFloat64
	BoundsTop    sql.NullFloat64
	BoundsRight  sql.NullFloat64
	BoundsBottom sql.NullFloat64
	CenterX      sql.NullFloat64
	CenterY      sql.NullFloat64

	Magnification sql.NullFloat64
	PyramidLevel  sql.NullInt64
	ClickX        sql.NullFloat64
	ClickY        sql.NullFloat64

	AttemptNumber   int            `gorm:"default:1;not null"`
	AnnotationText  sql.NullString `gorm:"type:text"`
	AnnotationLabel sql.NullString `gorm:"type:text"`

	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"not null"`
}

func (EventRow) TableName() string { return "events" }

// BeforeCreate hook to ensure timestamps are set.
func (e *EventRow) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedAtEpoch == 0 {
		e.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// SlideRow mirrors a slide manifest into the store so replay works from the
// database alone, without access to the tile directory.
type SlideRow struct {
	SlideID      string `gorm:"primaryKey"`
	Level0Width  int64  `gorm:"not null"`
	Level0Height int64  `gorm:"not null"`
	MPP0         sql.NullFloat64
	PatchPx      int `gorm:"not null"`
	TileSize     int `gorm:"not null"`
	Overlap      int `gorm:"default:0"`
	AnchorX      int `gorm:"default:0"`
	AnchorY      int `gorm:"default:0"`
	AlignmentOK  int `gorm:"default:0"`
	CreatedAt    string
}

func (SlideRow) TableName() string { return "slides" }
