package viz

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/drivenav/internal/sim"
)

const defaultFeedBuffer = 256

// Feed carries runner steps to the live view. OnStep never blocks the control
// loop; steps that arrive while the buffer is full are dropped and counted.
type Feed struct {
	steps   chan sim.Step
	done    chan struct{}
	once    sync.Once
	err     error
	dropped atomic.Uint64
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = defaultFeedBuffer
	}
	return &Feed{
		steps: make(chan sim.Step, buffer),
		done:  make(chan struct{}),
	}
}

func (f *Feed) OnStep(s sim.Step) {
	select {
	case f.steps <- s:
	default:
		f.dropped.Add(1)
	}
}

// Finish marks the run over. Buffered steps are still delivered before the
// view sees DoneMsg. Only the first call has any effect.
func (f *Feed) Finish(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

func (f *Feed) Dropped() uint64 { return f.dropped.Load() }

// StepMsg delivers one runner step to the model.
type StepMsg sim.Step

// DoneMsg reports that the run ended, with its error if any.
type DoneMsg struct{ Err error }

// wait blocks for the next step, or DoneMsg once the feed is finished and
// drained.
func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-f.steps:
			return StepMsg(s)
		case <-f.done:
			select {
			case s := <-f.steps:
				return StepMsg(s)
			default:
				return DoneMsg{Err: f.err}
			}
		}
	}
}
