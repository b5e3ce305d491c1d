// Package recorder captures viewport snapshots on every navigation
// transition and ships them to the event store in batches.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/slidetrace/internal/errs"
	"github.com/thebtf/slidetrace/internal/render"
	"github.com/thebtf/slidetrace/pkg/models"
)

// Sink is the event store seen from the recorder: ordered, durable,
// at-least-once batch append.
type Sink interface {
	AppendEvents(ctx context.Context, sessionID string, events []models.Event) (int, error)
}

// Config holds the flush policy.
type Config struct {
	BatchSize     int           // flush after this many buffered events
	FlushInterval time.Duration // flush on this wall-clock interval regardless of count
	MaxRetries    int           // transient-failure retries per flush
	RetryBase     time.Duration // first backoff delay; doubles per retry
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	return c
}

// SessionInfo identifies the session every snapshot belongs to.
type SessionInfo struct {
	SessionID     string
	UserID        string
	SlideID       string
	AttemptNumber int
}

// SnapshotOpts carries the per-event fields the renderer cannot provide.
type SnapshotOpts struct {
	// Magnification is the nominal ladder rung, nil for whole-slide fit.
	Magnification *float64
	// Click is the image-space click point, present only on click events.
	Click *models.Point
	// Annotation is the label payload on terminal events.
	Annotation *models.Annotation
}

// Stats is a point-in-time snapshot of recorder counters.
type Stats struct {
	Recorded      int64
	Flushed       int64
	FlushCalls    int64
	Retries       int64
	FailedBatches int64
}

// Recorder buffers events and drains them to the sink. The buffer is
// appended to and drained by the same logical flow; an in-flight flag is the
// only flush discipline needed.
type Recorder struct {
	mu       sync.Mutex
	cfg      Config
	sink     Sink
	surface  render.Surface
	info     SessionInfo
	buf      []models.Event
	inFlight bool

	recorded      atomic.Int64
	flushed       atomic.Int64
	flushCalls    atomic.Int64
	retries       atomic.Int64
	failedBatches atomic.Int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a recorder for one session against one surface.
func New(sink Sink, surface render.Surface, info SessionInfo, cfg Config) *Recorder {
	return &Recorder{
		cfg:     cfg.withDefaults(),
		sink:    sink,
		surface: surface,
		info:    info,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Snapshot queries the surface for its genuine current state, builds a
// validated event and buffers it. A size-triggered flush happens inline.
func (r *Recorder) Snapshot(ctx context.Context, kind models.EventKind, opts SnapshotOpts) error {
	ev := models.Event{
		SessionID:     r.info.SessionID,
		UserID:        r.info.UserID,
		SlideID:       r.info.SlideID,
		Kind:          kind,
		AttemptNumber: r.info.AttemptNumber,
		ClickPoint:    opts.Click,
		Annotation:    opts.Annotation,
	}
	ev.At(r.now())

	if !kind.Viewportless() {
		bounds := r.surface.Bounds()
		center := bounds.Center()
		level := r.surface.PyramidLevel()
		ev.ViewportBounds = &bounds
		ev.ViewportCenter = &center
		ev.PyramidLevel = &level
		ev.Magnification = opts.Magnification
	}

	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %s", errs.ErrValidation, err)
	}

	r.mu.Lock()
	r.buf = append(r.buf, ev)
	full := len(r.buf) >= r.cfg.BatchSize
	r.mu.Unlock()
	r.recorded.Add(1)

	if full {
		if err := r.Flush(ctx); err != nil {
			// Recording failures stay invisible to the user; the batch
			// remains buffered for the next attempt.
			log.Warn().Err(err).Str("sessionId", r.info.SessionID).Msg("Event flush failed, keeping batch buffered")
		}
	}
	return nil
}

// Pending returns the number of buffered, undelivered events.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Flush delivers at most one batch. No-op when a flush is already in flight
// or the buffer is empty. On success the delivered events leave the buffer;
// on transient failure they remain for the next cycle.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if r.inFlight || len(r.buf) == 0 {
		r.mu.Unlock()
		return nil
	}
	r.inFlight = true
	n := len(r.buf)
	if n > r.cfg.BatchSize {
		n = r.cfg.BatchSize
	}
	batch := make([]models.Event, n)
	copy(batch, r.buf[:n])
	r.mu.Unlock()

	err := r.deliver(ctx, batch)

	r.mu.Lock()
	r.inFlight = false
	// Success removes the batch. A terminal rejection (validation failure,
	// completed session) also removes it: the whole batch was rejected and
	// will never be accepted. Transient failures and cancellations keep the
	// events buffered for the next cycle.
	if err == nil || terminalRejection(err) {
		r.buf = append([]models.Event(nil), r.buf[n:]...)
	}
	r.mu.Unlock()

	if err == nil {
		r.flushed.Add(int64(n))
	}
	return err
}

// terminalRejection reports whether the sink rejected the batch for good.
func terminalRejection(err error) bool {
	return errors.Is(err, errs.ErrValidation) || errors.Is(err, errs.ErrSessionCompleted)
}

// deliver sends one batch with bounded exponential backoff on transient
// errors.
func (r *Recorder) deliver(ctx context.Context, batch []models.Event) error {
	r.flushCalls.Add(1)

	var err error
	for attempt := 0; ; attempt++ {
		_, err = r.sink.AppendEvents(ctx, r.info.SessionID, batch)
		if err == nil {
			return nil
		}
		if !errs.IsTransient(err) {
			r.failedBatches.Add(1)
			return fmt.Errorf("append events: %w", err)
		}
		if attempt >= r.cfg.MaxRetries-1 {
			break
		}
		delay := r.cfg.RetryBase << attempt
		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Transient flush failure, backing off")
		r.retries.Add(1)
		if serr := r.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	r.failedBatches.Add(1)
	return fmt.Errorf("append events after %d attempts: %w", r.cfg.MaxRetries, err)
}

// FlushNow drains the whole buffer, batch by batch. Best effort: used on
// page/tab teardown signals and on shutdown.
func (r *Recorder) FlushNow(ctx context.Context) error {
	for {
		r.mu.Lock()
		remaining := len(r.buf)
		r.mu.Unlock()
		if remaining == 0 {
			return nil
		}
		if err := r.Flush(ctx); err != nil {
			return err
		}
	}
}

// Run flushes on the configured interval until ctx is done, then makes a
// final best-effort drain.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			teardown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := r.FlushNow(teardown); err != nil {
				log.Warn().Err(err).Str("sessionId", r.info.SessionID).Msg("Final event flush incomplete")
			}
			return
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				log.Warn().Err(err).Str("sessionId", r.info.SessionID).Msg("Interval flush failed")
			}
		}
	}
}

// Stats returns current counter values.
func (r *Recorder) Stats() Stats {
	return Stats{
		Recorded:      r.recorded.Load(),
		Flushed:       r.flushed.Load(),
		FlushCalls:    r.flushCalls.Load(),
		Retries:       r.retries.Load(),
		FailedBatches: r.failedBatches.Load(),
	}
}

// SetClock overrides the time source. Test hook.
func (r *Recorder) SetClock(now func() time.Time) { r.now = now }

// SetSleep overrides the backoff sleeper. Test hook.
func (r *Recorder) SetSleep(sleep func(ctx context.Context, d time.Duration) error) { r.sleep = sleep }
