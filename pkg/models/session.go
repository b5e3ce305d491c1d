package models

import "database/sql"

// Session is the lifecycle container for one user's examination of one
// slide. At most one active (non-completed) session exists per (user, slide)
// pair; completed sessions are immutable.
type Session struct {
	ID                 string         `db:"id" json:"id"`
	UserID             string         `db:"user_id" json:"user_id"`
	SlideID            string         `db:"slide_id" json:"slide_id"`
	AttemptNumber      int            `db:"attempt_number" json:"attempt_number"`
	StartedAt          string         `db:"started_at" json:"started_at"`
	StartedAtEpoch     int64          `db:"started_at_epoch" json:"started_at_epoch"`
	LastStartedAtEpoch sql.NullInt64  `db:"last_started_at_epoch" json:"last_started_at_epoch,omitempty"`
	CompletedAt        sql.NullString `db:"completed_at" json:"completed_at,omitempty"`
	CompletedAtEpoch   sql.NullInt64  `db:"completed_at_epoch" json:"completed_at_epoch,omitempty"`
	Label              sql.NullString `db:"label" json:"label,omitempty"`
}

// Completed reports whether the session has been finalized with a label.
func (s *Session) Completed() bool {
	return s.CompletedAt.Valid
}
