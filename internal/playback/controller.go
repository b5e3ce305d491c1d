// Package playback orchestrates replay timing: real inter-event gaps scaled
// by a speed factor, clamped dwell, pause/resume, and manual step/seek.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/slidetrace/internal/replay"
)

// State is the controller lifecycle state.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// DefaultSpeeds is the selectable speed multiplier set when the
// configuration does not override it.
var DefaultSpeeds = []float64{0.5, 1, 2, 5}

// Config bounds the replay pacing.
type Config struct {
	Speeds        []float64     // selectable speed multipliers
	MinDwell      time.Duration // floor between frames, avoids instant-skip
	MaxDwell      time.Duration // ceiling, avoids multi-second stalls on real gaps
	SettleTimeout time.Duration // advance anyway after this long waiting for tiles
}

func (c Config) withDefaults() Config {
	if len(c.Speeds) == 0 {
		c.Speeds = DefaultSpeeds
	}
	if c.MinDwell <= 0 {
		c.MinDwell = 150 * time.Millisecond
	}
	if c.MaxDwell <= 0 {
		c.MaxDwell = 4 * time.Second
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 3 * time.Second
	}
	return c
}

// Controller drives a replay engine frame by frame. Play blocks the calling
// goroutine until it stops, pauses, or the context is done; Pause, Seek,
// Step and SetSpeed may be called from other goroutines.
type Controller struct {
	mu     sync.Mutex
	engine *replay.Engine
	cfg    Config
	state  State
	pos    int
	speed  float64

	// interrupt wakes the play loop out of a dwell when state changes.
	interrupt chan struct{}

	// OnFrame, when set, receives every applied frame. Set before Play.
	OnFrame func(replay.Frame)
}

// NewController creates a stopped controller at position 0, speed 1x.
func NewController(engine *replay.Engine, cfg Config) *Controller {
	return &Controller{
		engine:    engine,
		cfg:       cfg.withDefaults(),
		state:     StateStopped,
		speed:     1,
		interrupt: make(chan struct{}, 1),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position returns the index of the current event.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// SetSpeed selects a playback speed multiplier from the configured set.
func (c *Controller) SetSpeed(speed float64) error {
	ok := false
	for _, s := range c.cfg.Speeds {
		if s == speed {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("speed %v is not in the supported set %v", speed, c.cfg.Speeds)
	}
	c.mu.Lock()
	c.speed = speed
	c.mu.Unlock()
	c.poke()
	return nil
}

func (c *Controller) poke() {
	select {
	case c.interrupt <- struct{}{}:
	default:
	}
}

// Play advances through the remaining events: apply frame, await settle (or
// timeout), dwell for the scaled real gap, repeat. Returns when the final
// event is reached (state becomes stopped), Pause is called, or ctx is done.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StatePlaying {
		c.mu.Unlock()
		return nil
	}
	if c.state == StateStopped {
		c.pos = 0
	}
	c.state = StatePlaying
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if c.state != StatePlaying {
			c.mu.Unlock()
			return nil
		}
		pos := c.pos
		speed := c.speed
		c.mu.Unlock()

		if pos >= c.engine.Len() {
			c.stop()
			return nil
		}

		if err := c.apply(ctx, pos, true); err != nil {
			if ctx.Err() != nil {
				c.stop()
				return ctx.Err()
			}
			// Render failures degrade: log and keep advancing rather than
			// aborting the whole replay.
			log.Warn().Err(err).Int("index", pos).Msg("Replay frame failed, skipping")
		}

		if pos == c.engine.Len()-1 {
			c.stop()
			return nil
		}

		dwell := c.dwell(pos, speed)
		timer := time.NewTimer(dwell)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.stop()
			return ctx.Err()
		case <-c.interrupt:
			timer.Stop()
			// State or speed changed; re-evaluate from the top.
			continue
		case <-timer.C:
		}

		c.mu.Lock()
		if c.state == StatePlaying && c.pos == pos {
			c.pos = pos + 1
		}
		c.mu.Unlock()
	}
}

// dwell computes the wait before advancing past event pos: the real
// wall-clock delta to the next event divided by the speed factor, clamped.
func (c *Controller) dwell(pos int, speed float64) time.Duration {
	gap := time.Duration(c.engine.Event(pos+1).TimestampEpoch-c.engine.Event(pos).TimestampEpoch) * time.Millisecond
	if speed > 0 {
		gap = time.Duration(float64(gap) / speed)
	}
	if gap < c.cfg.MinDwell {
		gap = c.cfg.MinDwell
	}
	if gap > c.cfg.MaxDwell {
		gap = c.cfg.MaxDwell
	}
	return gap
}

// apply replays one event. Animated applications wait for the surface to
// settle, bounded by the settle timeout so a failed tile load never stalls
// playback permanently.
func (c *Controller) apply(ctx context.Context, pos int, animated bool) error {
	frame, err := c.engine.Apply(ctx, pos)
	if err != nil {
		return err
	}
	if animated {
		sctx, cancel := context.WithTimeout(ctx, c.cfg.SettleTimeout)
		err := c.engine.Surface().WaitSettled(sctx)
		cancel()
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Int("index", pos).Msg("Surface not settled, advancing anyway")
		}
	}
	if c.OnFrame != nil {
		c.OnFrame(frame)
	}
	return nil
}

func (c *Controller) stop() {
	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()
}

// Pause halts scheduling without resetting the position.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state == StatePlaying {
		c.state = StatePaused
	}
	c.mu.Unlock()
	c.poke()
}

// Seek jumps directly to event index i, applying it immediately without an
// animated settle wait. Used for scrubbing.
func (c *Controller) Seek(ctx context.Context, i int) error {
	if i < 0 || i >= c.engine.Len() {
		return fmt.Errorf("seek index %d out of range [0,%d)", i, c.engine.Len())
	}
	c.mu.Lock()
	c.pos = i
	if c.state == StateStopped {
		c.state = StatePaused
	}
	c.mu.Unlock()
	c.poke()
	return c.apply(ctx, i, false)
}

// Step moves one event forward or back, animated.
func (c *Controller) Step(ctx context.Context, delta int) error {
	c.mu.Lock()
	i := c.pos + delta
	if i < 0 {
		i = 0
	}
	if i >= c.engine.Len() {
		i = c.engine.Len() - 1
	}
	c.pos = i
	if c.state == StateStopped {
		c.state = StatePaused
	}
	c.mu.Unlock()
	c.poke()
	return c.apply(ctx, i, true)
}
