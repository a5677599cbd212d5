package loop

import (
	"errors"
	"sync"
	"time"

	"github.com/san-kum/drivenav/internal/monitoring"
	"github.com/san-kum/drivenav/internal/timeutil"
)

var (
	ErrRunning       = errors.New("loop: already running")
	ErrNotRunning    = errors.New("loop: not running")
	ErrStopped       = errors.New("loop: registration closed after stop")
	ErrInvalidPeriod = errors.New("loop: period must be positive")
)

// DefaultPeriod is the control loop cadence.
const DefaultPeriod = 20 * time.Millisecond

type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats summarises loop timing since the last Start.
type Stats struct {
	Ticks     uint64
	LateTicks uint64
	MaxWork   time.Duration
}

// Looper dispatches a Group on a dedicated goroutine. Lifecycle calls (Start,
// Stop) must be serialised by the caller.
type Looper struct {
	clock  timeutil.Clock
	period time.Duration

	// mu guards state, group, pending and stats. It is never held while a
	// task callback runs.
	mu      sync.Mutex
	state   State
	group   Group
	pending []Task
	stats   Stats

	ticker timeutil.Ticker
	quit   chan struct{}
	done   chan struct{}
}

func NewLooper(clock timeutil.Clock, period time.Duration) (*Looper, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Looper{clock: clock, period: period}, nil
}

func (l *Looper) Period() time.Duration { return l.period }

func (l *Looper) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Looper) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Register adds a task. While running, the task is queued and joins on the
// loop goroutine at the next tick, where its OnStart runs before its first
// OnLoop. This makes registration from any goroutine safe, including from
// inside a task callback.
func (l *Looper) Register(t Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case Stopped:
		return ErrStopped
	case Running:
		l.pending = append(l.pending, t)
	default:
		l.group.Register(t)
	}
	return nil
}

// admit moves queued registrations into the group and returns them so the
// caller can start them outside the lock.
func (l *Looper) admit() []Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	admitted := l.pending
	l.pending = nil
	for _, t := range admitted {
		l.group.Register(t)
	}
	return admitted
}

func (l *Looper) Start() error {
	l.mu.Lock()
	if l.state == Running {
		l.mu.Unlock()
		return ErrRunning
	}
	group := l.group.snapshot()
	l.stats = Stats{}
	l.state = Running
	l.mu.Unlock()

	group.Start(timeutil.Seconds(l.clock.Now()))

	l.ticker = l.clock.NewTicker(l.period)
	l.quit = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.ticker, l.quit, l.done)
	return nil
}

// Stop halts the loop, waits for an in-flight tick, then calls every task's
// OnStop. No OnLoop runs after OnStop. Tasks still queued are started first
// so every registered task sees a matching OnStart and OnStop.
func (l *Looper) Stop() error {
	l.mu.Lock()
	if l.state != Running {
		l.mu.Unlock()
		return ErrNotRunning
	}
	l.mu.Unlock()

	close(l.quit)
	<-l.done
	l.ticker.Stop()

	l.mu.Lock()
	queued := l.pending
	l.pending = nil
	for _, t := range queued {
		l.group.Register(t)
	}
	group := l.group.snapshot()
	l.state = Stopped
	l.mu.Unlock()

	now := timeutil.Seconds(l.clock.Now())
	for _, t := range queued {
		t.OnStart(now)
	}
	return group.Stop(now)
}

func (l *Looper) run(ticker timeutil.Ticker, quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		case now := <-ticker.C():
			select {
			case <-quit:
				return
			default:
			}
			l.tick(now)
		}
	}
}

func (l *Looper) tick(now time.Time) {
	ts := timeutil.Seconds(now)
	begin := l.clock.Now()
	for _, t := range l.admit() {
		t.OnStart(ts)
	}

	l.mu.Lock()
	group := l.group.snapshot()
	l.mu.Unlock()

	group.Loop(ts)
	work := l.clock.Since(begin)

	l.mu.Lock()
	l.stats.Ticks++
	late := work > l.period
	if late {
		l.stats.LateTicks++
	}
	if work > l.stats.MaxWork {
		l.stats.MaxWork = work
	}
	l.mu.Unlock()

	if late {
		monitoring.Warnf("loop: tick took %v, over the %v period", work, l.period)
	}
}
