// Package telemetry records follower snapshots for offline tuning.
package telemetry

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/san-kum/drivenav/internal/pursuit"
)

var Header = []string{
	"time", "x", "y", "theta", "distance",
	"lookahead_x", "lookahead_y", "lookahead",
	"curvature", "profile_speed", "command", "cte", "ate",
}

type request struct {
	row pursuit.DebugOutput
	ack chan error
}

// CSVWriter is a drive.DebugSink that writes one CSV row per snapshot from a
// background goroutine. Add never blocks; snapshots that do not fit in the
// buffer are dropped and counted.
type CSVWriter struct {
	closer  io.Closer
	w       *csv.Writer
	ch      chan request
	done    chan struct{}
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Int64

	// err is owned by the drain goroutine.
	err error
}

func NewCSVWriter(out io.Writer, buffer int) *CSVWriter {
	if buffer <= 0 {
		buffer = 512
	}
	c := &CSVWriter{
		w:    csv.NewWriter(out),
		ch:   make(chan request, buffer),
		done: make(chan struct{}),
	}
	if cl, ok := out.(io.Closer); ok {
		c.closer = cl
	}
	go c.drain()
	return c
}

// Create writes to a new file at path, closed by Close.
func Create(path string, buffer int) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return NewCSVWriter(f, buffer), nil
}

func (c *CSVWriter) drain() {
	defer close(c.done)
	c.record(c.w.Write(Header))
	for req := range c.ch {
		if req.ack != nil {
			c.w.Flush()
			c.record(c.w.Error())
			req.ack <- c.err
			continue
		}
		c.record(c.w.Write(formatRow(req.row)))
	}
	c.w.Flush()
	c.record(c.w.Error())
}

func (c *CSVWriter) record(err error) {
	if c.err == nil {
		c.err = err
	}
}

func formatRow(o pursuit.DebugOutput) []string {
	vals := []float64{
		o.Time, o.PoseX, o.PoseY, o.PoseTheta, o.DistanceDriven,
		o.LookaheadX, o.LookaheadY, o.LookaheadDist,
		o.Curvature, o.ProfileSpeed, o.Command, o.CrossTrackError, o.AlongTrackError,
	}
	row := make([]string, len(vals))
	for i, v := range vals {
		row[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return row
}

func (c *CSVWriter) Add(o pursuit.DebugOutput) {
	if c.closed.Load() {
		c.dropped.Add(1)
		return
	}
	select {
	case c.ch <- request{row: o}:
	default:
		c.dropped.Add(1)
	}
}

func (c *CSVWriter) Dropped() int64 {
	return c.dropped.Load()
}

// Flush waits until every queued snapshot is written and returns the first
// write error seen.
func (c *CSVWriter) Flush() error {
	if c.closed.Load() {
		return nil
	}
	ack := make(chan error, 1)
	c.ch <- request{ack: ack}
	return <-ack
}

// Close flushes, stops the drain goroutine and closes the underlying file.
// Add and Flush must not race with Close.
func (c *CSVWriter) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.ch)
		<-c.done
		err = c.err
		if c.closer != nil {
			if cerr := c.closer.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}
