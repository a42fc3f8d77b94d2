package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// SyncThreshold is the allowed skew between two streams
	SyncThreshold = 10 * time.Millisecond

	// SyncRetry is how long a leading stream waits before re-checking
	SyncRetry = 5 * time.Millisecond
)

// Position holds the timestamp of the last presented sample of a stream.
// It is written by the owning stream and read by its peer.
type Position struct {
	v atomic.Int64
}

// NewPosition creates a position with nothing presented yet
func NewPosition() *Position {
	p := &Position{}
	p.v.Store(-1)
	return p
}

// Store records the last presented timestamp
func (p *Position) Store(tsMicros int64) {
	p.v.Store(tsMicros)
}

// Load returns the last presented timestamp, or -1
func (p *Position) Load() int64 {
	return p.v.Load()
}

// WallClock paces a stream against elapsed real time. The first frame starts
// the clock; each later frame is held until its offset from the first frame
// has elapsed. Time spent paused does not count as elapsed.
type WallClock struct {
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	mu          sync.Mutex
	started     bool
	t0          time.Time
	base        int64
	pausedAt    time.Time
	pausedTotal time.Duration
}

// ClockOption is a functional option for configuring WallClock
type ClockOption func(*WallClock)

// WithNow sets the time source
func WithNow(now func() time.Time) ClockOption {
	return func(c *WallClock) {
		c.now = now
	}
}

// WithSleep sets the sleep function
func WithSleep(sleep func(ctx context.Context, d time.Duration) bool) ClockOption {
	return func(c *WallClock) {
		c.sleep = sleep
	}
}

// NewWallClock creates a clock that has not started yet
func NewWallClock(opts ...ClockOption) *WallClock {
	c := &WallClock{
		now:   time.Now,
		sleep: Sleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Delay returns how long the frame at tsMicros must wait; the first call starts the clock
func (c *WallClock) Delay(tsMicros int64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.started {
		c.started = true
		c.t0 = now
		c.base = tsMicros
		return 0
	}

	elapsed := now.Sub(c.t0) - c.pausedTotal
	if !c.pausedAt.IsZero() {
		elapsed -= now.Sub(c.pausedAt)
	}

	due := time.Duration(tsMicros-c.base) * time.Microsecond
	return (due - elapsed).Truncate(time.Millisecond)
}

// Pace holds the caller until the frame at tsMicros is due. It returns the
// context's error if ctx ends first.
func (c *WallClock) Pace(ctx context.Context, tsMicros int64) error {
	if d := c.Delay(tsMicros); d > 0 {
		c.sleep(ctx, d)
	}
	return ctx.Err()
}

// Pause stops elapsed time from advancing
func (c *WallClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pausedAt.IsZero() {
		c.pausedAt = c.now()
	}
}

// Resume lets elapsed time advance again
func (c *WallClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pausedAt.IsZero() {
		c.pausedTotal += c.now().Sub(c.pausedAt)
		c.pausedAt = time.Time{}
	}
}

// Cursor is the part of a sample source the cross-stream synchronizer drives
type Cursor interface {
	PeekTimestamp() int64
	Advance() bool
}

// CrossStreamSync keeps one stream within a band of a peer stream's position
type CrossStreamSync struct {
	self      Cursor
	peer      *Position
	state     *State
	threshold time.Duration
	retry     time.Duration
	sleep     func(ctx context.Context, d time.Duration) bool

	skipped atomic.Int64
}

// SyncOption is a functional option for configuring CrossStreamSync
type SyncOption func(*CrossStreamSync)

// WithThreshold overrides SyncThreshold
func WithThreshold(d time.Duration) SyncOption {
	return func(s *CrossStreamSync) {
		if d > 0 {
			s.threshold = d
		}
	}
}

// WithRetry overrides SyncRetry
func WithRetry(d time.Duration) SyncOption {
	return func(s *CrossStreamSync) {
		if d > 0 {
			s.retry = d
		}
	}
}

// NewCrossStreamSync creates a synchronizer of self against peer
func NewCrossStreamSync(self Cursor, peer *Position, state *State, opts ...SyncOption) *CrossStreamSync {
	s := &CrossStreamSync{
		self:      self,
		peer:      peer,
		state:     state,
		threshold: SyncThreshold,
		retry:     SyncRetry,
		sleep:     Sleep,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sync waits while self leads the peer and skips samples while it lags,
// returning once the two are within the threshold. Until the peer presents
// its first sample, self is held.
func (s *CrossStreamSync) Sync(ctx context.Context) error {
	band := s.threshold.Microseconds()

	for s.state.Playing() && ctx.Err() == nil {
		own := s.self.PeekTimestamp()
		if own < 0 {
			return nil
		}
		peer := s.peer.Load()

		switch {
		case peer < 0 || own > peer+band:
			s.sleep(ctx, s.retry)
		case own < peer-band:
			s.skipped.Add(1)
			if !s.self.Advance() {
				return nil
			}
		default:
			return nil
		}
	}
	return nil
}

// Skipped returns how many samples were dropped to catch up
func (s *CrossStreamSync) Skipped() int64 {
	return s.skipped.Load()
}
