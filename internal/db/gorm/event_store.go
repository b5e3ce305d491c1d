package gorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/thebtf/slidetrace/internal/errs"
	"github.com/thebtf/slidetrace/pkg/models"
)

// EventStore provides the ordered, durable event log: batch append and
// ordered range read, keyed by session.
type EventStore struct {
	store    *Store
	sessions *SessionStore
}

// NewEventStore creates an event store.
func NewEventStore(store *Store, sessions *SessionStore) *EventStore {
	return &EventStore{store: store, sessions: sessions}
}

// AppendEvents inserts a batch of events for one session. The batch is
// validated whole: any malformed event rejects all of it with
// ErrValidation. Appending to a completed session fails with
// ErrSessionCompleted. Timestamps must be non-decreasing within the batch
// and must not regress below the session's last stored event.
func (s *EventStore) AppendEvents(ctx context.Context, sessionID string, events []models.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if sess.Completed() {
		return 0, errs.ErrSessionCompleted
	}

	var prevEpoch int64
	for i := range events {
		ev := &events[i]
		if ev.SessionID != sessionID {
			return 0, fmt.Errorf("%w: event %d belongs to session %q, not %q",
				errs.ErrValidation, i, ev.SessionID, sessionID)
		}
		if err := ev.Validate(); err != nil {
			return 0, fmt.Errorf("%w: event %d: %s", errs.ErrValidation, i, err)
		}
		if ev.TimestampEpoch < prevEpoch {
			return 0, fmt.Errorf("%w: event %d timestamp decreases within batch", errs.ErrValidation, i)
		}
		prevEpoch = ev.TimestampEpoch
	}

	rows := make([]EventRow, len(events))
	for i, ev := range events {
		rows[i] = toEventRow(ev)
	}

	err = s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lastEpoch sql.NullInt64
		err := tx.Model(&EventRow{}).
			Where("session_id = ?", sessionID).
			Select("MAX(timestamp_epoch)").
			Scan(&lastEpoch).Error
		if err != nil {
			return fmt.Errorf("query last event timestamp: %w", err)
		}
		if lastEpoch.Valid && events[0].TimestampEpoch < lastEpoch.Int64 {
			return fmt.Errorf("%w: batch starts at %d, before the session's last stored event at %d",
				errs.ErrValidation, events[0].TimestampEpoch, lastEpoch.Int64)
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		if errors.Is(err, errs.ErrValidation) {
			return 0, err
		}
		// Insert failures are infrastructure trouble, not bad input; the
		// client may retry the batch.
		return 0, errs.Transientf("insert events: %v", err)
	}
	return len(rows), nil
}

// ListEvents returns all events of a session ordered by timestamp ascending
// (insertion order breaks ties).
func (s *EventStore) ListEvents(ctx context.Context, sessionID string) ([]models.Event, error) {
	var rows []EventRow
	err := s.store.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp_epoch ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]models.Event, len(rows))
	for i, row := range rows {
		events[i] = fromEventRow(row)
	}
	return events, nil
}

// CountAll returns the total number of stored events.
func (s *EventStore) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := s.store.DB.WithContext(ctx).Model(&EventRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count all events: %w", err)
	}
	return count, nil
}

// CountEvents returns the number of stored events for a session.
func (s *EventStore) CountEvents(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := s.store.DB.WithContext(ctx).
		Model(&EventRow{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}
