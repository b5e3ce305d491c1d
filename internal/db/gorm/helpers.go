package gorm

import (
	"database/sql"

	"github.com/thebtf/slidetrace/pkg/models"
)

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// toEventRow converts a wire event to its storage row.
func toEventRow(ev models.Event) EventRow {
	row := EventRow{
		SessionID:      ev.SessionID,
		UserID:         ev.UserID,
		SlideID:        ev.SlideID,
		Timestamp:      ev.Timestamp,
		TimestampEpoch: ev.TimestampEpoch,
		Kind:           string(ev.Kind),
		Magnification:  nullFloat(ev.Magnification),
		AttemptNumber:  ev.AttemptNumber,
	}
	if ev.ViewportBounds != nil {
		b := ev.ViewportBounds
		row.BoundsLeft = sql.NullFloat64{Float64: b.Left, Valid: true}
		row.BoundsTop = sql.NullFloat64{Float64: b.Top, Valid: true}
		row.BoundsRight = sql.NullFloat64{Float64: b.Right, Valid: true}
		row.BoundsBottom = sql.NullFloat64{Float64: b.Bottom, Valid: true}
	}
	if ev.ViewportCenter != nil {
		row.CenterX = sql.NullFloat64{Float64: ev.ViewportCenter.X, Valid: true}
		row.CenterY = sql.NullFloat64{Float64: ev.ViewportCenter.Y, Valid: true}
	}
	if ev.PyramidLevel != nil {
		row.PyramidLevel = sql.NullInt64{Int64: int64(*ev.PyramidLevel), Valid: true}
	}
	if ev.ClickPoint != nil {
		row.ClickX = sql.NullFloat64{Float64: ev.ClickPoint.X, Valid: true}
		row.ClickY = sql.NullFloat64{Float64: ev.ClickPoint.Y, Valid: true}
	}
	if ev.Annotation != nil {
		if ev.Annotation.Text != "" {
			row.AnnotationText = sql.NullString{String: ev.Annotation.Text, Valid: true}
		}
		if ev.Annotation.Label != "" {
			row.AnnotationLabel = sql.NullString{String: ev.Annotation.Label, Valid: true}
		}
	}
	return row
}

// fromEventRow converts a storage row back to the wire event.
func fromEventRow(row EventRow) models.Event {
	ev := models.Event{
		ID:             row.ID,
		SessionID:      row.SessionID,
		UserID:         row.UserID,
		SlideID:        row.SlideID,
		Timestamp:      row.Timestamp,
		TimestampEpoch: row.TimestampEpoch,
		Kind:           models.EventKind(row.Kind),
		Magnification:  floatPtr(row.Magnification),
		AttemptNumber:  row.AttemptNumber,
	}
	if row.BoundsLeft.Valid && row.BoundsTop.Valid && row.BoundsRight.Valid && row.BoundsBottom.Valid {
		ev.ViewportBounds = &models.Bounds{
			Left:   row.BoundsLeft.Float64,
			Top:    row.BoundsTop.Float64,
			Right:  row.BoundsRight.Float64,
			Bottom: row.BoundsBottom.Float64,
		}
	}
	if row.CenterX.Valid && row.CenterY.Valid {
		ev.ViewportCenter = &models.Point{X: row.CenterX.Float64, Y: row.CenterY.Float64}
	}
	if row.PyramidLevel.Valid {
		lvl := int(row.PyramidLevel.Int64)
		ev.PyramidLevel = &lvl
	}
	if row.ClickX.Valid && row.ClickY.Valid {
		ev.ClickPoint = &models.Point{X: row.ClickX.Float64, Y: row.ClickY.Float64}
	}
	if row.AnnotationText.Valid || row.AnnotationLabel.Valid {
		ev.Annotation = &models.Annotation{
			Text:  row.AnnotationText.String,
			Label: row.AnnotationLabel.String,
		}
	}
	return ev
}

// toSlideRow converts a manifest to its storage row.
func toSlideRow(m *models.SlideManifest) SlideRow {
	row := SlideRow{
		SlideID:      m.SlideID,
		Level0Width:  m.Level0Width,
		Level0Height: m.Level0Height,
		MPP0:         nullFloat(m.MPP0),
		PatchPx:      m.PatchPx,
		TileSize:     m.TileSize,
		Overlap:      m.Overlap,
		AnchorX:      m.Anchor[0],
		AnchorY:      m.Anchor[1],
		CreatedAt:    m.CreatedAt,
	}
	if m.AlignmentOK {
		row.AlignmentOK = 1
	}
	return row
}

// fromSlideRow converts a storage row back to a manifest.
func fromSlideRow(row SlideRow) *models.SlideManifest {
	return &models.SlideManifest{
		SlideID:      row.SlideID,
		Level0Width:  row.Level0Width,
		Level0Height: row.Level0Height,
		MPP0:         floatPtr(row.MPP0),
		PatchPx:      row.PatchPx,
		TileSize:     row.TileSize,
		Overlap:      row.Overlap,
		Anchor:       [2]int{row.AnchorX, row.AnchorY},
		AlignmentOK:  row.AlignmentOK != 0,
		CreatedAt:    row.CreatedAt,
	}
}

// fromSessionRow converts a storage row to the domain session.
func fromSessionRow(row SessionRow) *models.Session {
	return &models.Session{
		ID:                 row.ID,
		UserID:             row.UserID,
		SlideID:            row.SlideID,
		AttemptNumber:      row.AttemptNumber,
		StartedAt:          row.StartedAt,
		StartedAtEpoch:     row.StartedAtEpoch,
		LastStartedAtEpoch: row.LastStartedAtEpoch,
		CompletedAt:        row.CompletedAt,
		CompletedAtEpoch:   row.CompletedAtEpoch,
		Label:              row.Label,
	}
}
