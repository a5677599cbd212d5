// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import (
	"log"
	"sync"
	"sync/atomic"
)

type logFunc func(format string, v ...interface{})

// current is swapped atomically so the logger may be replaced while the
// control loop is logging.
var current atomic.Pointer[logFunc]

func init() {
	SetLogger(log.Printf)
}

// Logf writes through the package-level diagnostic logger. It defaults to
// log.Printf; SetLogger redirects or mutes it.
func Logf(format string, v ...interface{}) {
	(*current.Load())(format, v...)
}

// SetLogger replaces the package logger. Passing nil sets a no-op logger.
// It is safe to call while other goroutines log.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	lf := logFunc(f)
	current.Store(&lf)
}

// Logger returns the logger currently installed, so it can be restored.
func Logger() func(format string, v ...interface{}) {
	return *current.Load()
}

func Infof(format string, v ...interface{})  { Logf("[INFO] "+format, v...) }
func Warnf(format string, v ...interface{})  { Logf("[WARN] "+format, v...) }
func Errorf(format string, v ...interface{}) { Logf("[ERROR] "+format, v...) }

type entry struct {
	format string
	args   []interface{}
}

// Async forwards log lines to a sink from a background goroutine so callers
// on the control loop never block. Lines that do not fit in the buffer are
// dropped and counted.
type Async struct {
	sink    func(format string, v ...interface{})
	ch      chan entry
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// NewAsync starts a drain goroutine writing to sink. Close must be called to
// release it.
func NewAsync(sink func(format string, v ...interface{}), buffer int) *Async {
	if buffer <= 0 {
		buffer = 256
	}
	a := &Async{
		sink: sink,
		ch:   make(chan entry, buffer),
		done: make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *Async) drain() {
	defer close(a.done)
	for e := range a.ch {
		a.sink(e.format, e.args...)
	}
}

// Logf has the same signature as the package logger and can be passed to
// SetLogger.
func (a *Async) Logf(format string, v ...interface{}) {
	select {
	case a.ch <- entry{format: format, args: v}:
	default:
		a.dropped.Add(1)
	}
}

func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close flushes queued lines and stops the drain goroutine. Logf must not be
// called after Close.
func (a *Async) Close() {
	a.once.Do(func() {
		close(a.ch)
		<-a.done
	})
}
