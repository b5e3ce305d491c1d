package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/thebtf/slidetrace/internal/errs"
	"github.com/thebtf/slidetrace/pkg/models"
)

// DefaultAttemptThreshold is the elapsed wall-clock gap after which a
// resumption counts as a new viewing attempt. Tunable policy, not a
// structural invariant.
const DefaultAttemptThreshold = time.Minute

// SessionStore provides session lifecycle operations.
type SessionStore struct {
	store     *Store
	threshold time.Duration
	now       func() time.Time
}

// NewSessionStore creates a session store with the given attempt threshold
// (DefaultAttemptThreshold when zero).
func NewSessionStore(store *Store, threshold time.Duration) *SessionStore {
	if threshold <= 0 {
		threshold = DefaultAttemptThreshold
	}
	return &SessionStore{store: store, threshold: threshold, now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (s *SessionStore) SetClock(now func() time.Time) { s.now = now }

// StartOrResume returns the active session for (user, slide), creating one
// on first visit. The attempt number increments only when the wall-clock gap
// since the server-recorded last start exceeds the threshold; the presence
// or absence of uploaded events is never consulted, because client-side
// buffering makes it unreliable. last_started_at is updated unconditionally
// on every resumption.
func (s *SessionStore) StartOrResume(ctx context.Context, userID, slideID string) (*models.Session, bool, error) {
	if userID == "" || slideID == "" {
		return nil, false, fmt.Errorf("%w: user_id and slide_id are required", errs.ErrValidation)
	}

	now := s.now()
	var out *models.Session
	var resumed bool

	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row SessionRow
		err := tx.Where("user_id = ? AND slide_id = ? AND completed_at IS NULL", userID, slideID).
			Order("started_at_epoch DESC").
			First(&row).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = SessionRow{
				ID:                 uuid.NewString(),
				UserID:             userID,
				SlideID:            slideID,
				AttemptNumber:      1,
				StartedAt:          now.Format(time.RFC3339),
				StartedAtEpoch:     now.UnixMilli(),
				LastStartedAtEpoch: nullInt64(now.UnixMilli()),
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			out = fromSessionRow(row)
			return nil
		}
		if err != nil {
			return fmt.Errorf("find active session: %w", err)
		}

		resumed = true
		if !row.LastStartedAtEpoch.Valid {
			// Legacy session without a recorded last start: initialize the
			// timestamp without incrementing the attempt.
			log.Debug().Str("sessionId", row.ID).Msg("Initializing last_started_at on legacy session")
		} else if now.UnixMilli()-row.LastStartedAtEpoch.Int64 > s.threshold.Milliseconds() {
			row.AttemptNumber++
			log.Info().
				Str("sessionId", row.ID).
				Int("attempt", row.AttemptNumber).
				Msg("New viewing attempt")
		}
		row.LastStartedAtEpoch = nullInt64(now.UnixMilli())

		if err := tx.Model(&SessionRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"attempt_number":        row.AttemptNumber,
			"last_started_at_epoch": row.LastStartedAtEpoch,
		}).Error; err != nil {
			return fmt.Errorf("update session on resume: %w", err)
		}
		out = fromSessionRow(row)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, resumed, nil
}

// GetByID retrieves a session.
func (s *SessionStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var row SessionRow
	err := s.store.DB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return fromSessionRow(row), nil
}

// Counts returns total and completed session counts.
func (s *SessionStore) Counts(ctx context.Context) (total, completed int64, err error) {
	if err = s.store.DB.WithContext(ctx).Model(&SessionRow{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("count sessions: %w", err)
	}
	err = s.store.DB.WithContext(ctx).Model(&SessionRow{}).
		Where("completed_at IS NOT NULL").Count(&completed).Error
	if err != nil {
		return 0, 0, fmt.Errorf("count completed sessions: %w", err)
	}
	return total, completed, nil
}

// Complete finalizes the session with a label. Finalization happens exactly
// once: a second call returns ErrSessionCompleted.
func (s *SessionStore) Complete(ctx context.Context, id, label string) error {
	now := s.now()
	return s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row SessionRow
		err := tx.Where("id = ?", id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if row.CompletedAt.Valid {
			return errs.ErrSessionCompleted
		}
		return tx.Model(&SessionRow{}).Where("id = ?", id).Updates(map[string]any{
			"completed_at":       now.Format(time.RFC3339),
			"completed_at_epoch": now.UnixMilli(),
			"label":              label,
		}).Error
	})
}
