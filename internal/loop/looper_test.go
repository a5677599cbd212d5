package loop_test

import (
	"fmt"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/drivenav/internal/loop"
	"github.com/san-kum/drivenav/internal/monitoring"
	"github.com/san-kum/drivenav/internal/timeutil"
)

const period = 20 * time.Millisecond

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) count(s string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, e := range j.entries {
		if e == s {
			n++
		}
	}
	return n
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func recordingTask(name string, j *journal) loop.Task {
	return loop.Funcs{
		Start: func(float64) { j.add(name + ":start") },
		Loop:  func(float64) { j.add(name + ":loop") },
		Stop:  func(float64) error { j.add(name + ":stop"); return nil },
	}
}

var _ = Describe("Looper", func() {
	var (
		clock  *timeutil.MockClock
		looper *loop.Looper
		j      *journal
	)

	advance := func(ticks int) {
		for i := 0; i < ticks; i++ {
			before := looper.Stats().Ticks
			clock.Advance(period)
			Eventually(func() uint64 { return looper.Stats().Ticks }).Should(Equal(before + 1))
		}
	}

	BeforeEach(func() {
		clock = timeutil.NewMockClock(time.Unix(1000, 0))
		var err error
		looper, err = loop.NewLooper(clock, period)
		Expect(err).NotTo(HaveOccurred())
		j = &journal{}
	})

	It("starts idle", func() {
		Expect(looper.State()).To(Equal(loop.Idle))
		Expect(looper.Stop()).To(MatchError(loop.ErrNotRunning))
	})

	It("runs every task once per tick in registration order", func() {
		names := []string{"a", "b", "c"}
		for _, n := range names {
			Expect(looper.Register(recordingTask(n, j))).To(Succeed())
		}

		Expect(looper.Start()).To(Succeed())
		Expect(looper.State()).To(Equal(loop.Running))
		for _, n := range names {
			Expect(j.count(n + ":start")).To(Equal(1))
		}

		const k = 5
		advance(k)
		Expect(looper.Stop()).To(Succeed())
		Expect(looper.State()).To(Equal(loop.Stopped))

		var want []string
		for _, n := range names {
			want = append(want, n+":start")
		}
		for i := 0; i < k; i++ {
			for _, n := range names {
				want = append(want, n+":loop")
			}
		}
		for _, n := range names {
			want = append(want, n+":stop")
		}
		Expect(j.all()).To(Equal(want))
	})

	It("passes tick timestamps on the fixed cadence", func() {
		var mu sync.Mutex
		var stamps []float64
		Expect(looper.Register(loop.Funcs{Loop: func(t float64) {
			mu.Lock()
			stamps = append(stamps, t)
			mu.Unlock()
		}})).To(Succeed())
		Expect(looper.Start()).To(Succeed())
		advance(3)
		Expect(looper.Stop()).To(Succeed())

		mu.Lock()
		defer mu.Unlock()
		Expect(stamps).To(HaveLen(3))
		Expect(stamps[0]).To(BeNumerically("~", 1000.02, 1e-6))
		Expect(stamps[2] - stamps[1]).To(BeNumerically("~", 0.02, 1e-6))
	})

	It("refuses a second start", func() {
		Expect(looper.Start()).To(Succeed())
		Expect(looper.Start()).To(MatchError(loop.ErrRunning))
		Expect(looper.Stop()).To(Succeed())
	})

	It("can be restarted after stop", func() {
		Expect(looper.Register(recordingTask("a", j))).To(Succeed())
		Expect(looper.Start()).To(Succeed())
		advance(1)
		Expect(looper.Stop()).To(Succeed())

		Expect(looper.Start()).To(Succeed())
		advance(2)
		Expect(looper.Stop()).To(Succeed())

		Expect(j.count("a:start")).To(Equal(2))
		Expect(j.count("a:loop")).To(Equal(3))
		Expect(j.count("a:stop")).To(Equal(2))
	})

	It("starts a task registered while running on the next tick", func() {
		Expect(looper.Register(recordingTask("a", j))).To(Succeed())
		Expect(looper.Start()).To(Succeed())
		Expect(looper.Register(recordingTask("late", j))).To(Succeed())
		Expect(j.count("late:start")).To(Equal(0))

		advance(1)
		Expect(looper.Stop()).To(Succeed())
		Expect(j.all()).To(Equal([]string{
			"a:start",
			"late:start", "a:loop", "late:loop",
			"a:stop", "late:stop",
		}))
	})

	It("starts and stops a task still queued at stop", func() {
		Expect(looper.Start()).To(Succeed())
		Expect(looper.Register(recordingTask("late", j))).To(Succeed())
		Expect(looper.Stop()).To(Succeed())
		Expect(j.all()).To(Equal([]string{"late:start", "late:stop"}))
	})

	It("refuses registration after stop", func() {
		Expect(looper.Start()).To(Succeed())
		Expect(looper.Stop()).To(Succeed())
		Expect(looper.Register(recordingTask("x", j))).To(MatchError(loop.ErrStopped))
	})

	It("accepts registration from another goroutine during a tick", func() {
		entered := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		Expect(looper.Register(loop.Funcs{Loop: func(float64) {
			once.Do(func() {
				close(entered)
				<-release
			})
		}})).To(Succeed())
		Expect(looper.Start()).To(Succeed())

		clock.Advance(period)
		Eventually(entered).Should(BeClosed())
		Expect(looper.Register(recordingTask("side", j))).To(Succeed())
		close(release)
		Eventually(func() uint64 { return looper.Stats().Ticks }).Should(Equal(uint64(1)))

		advance(1)
		Expect(looper.Stop()).To(Succeed())
		Expect(j.all()).To(Equal([]string{"side:start", "side:loop", "side:stop"}))
	})

	It("defers registration made from inside a callback", func() {
		errs := make(chan error, 1)
		registered := false
		Expect(looper.Register(loop.Funcs{Loop: func(float64) {
			if !registered {
				registered = true
				errs <- looper.Register(recordingTask("inner", j))
			}
		}})).To(Succeed())
		Expect(looper.Start()).To(Succeed())
		advance(1)
		Eventually(errs).Should(Receive(BeNil()))
		Expect(j.count("inner:loop")).To(Equal(0))

		advance(1)
		Expect(looper.Stop()).To(Succeed())
		Expect(j.count("inner:start")).To(Equal(1))
		Expect(j.count("inner:loop")).To(Equal(1))
		Expect(j.count("inner:stop")).To(Equal(1))
	})

	Context("when a tick overruns", func() {
		var (
			mu    sync.Mutex
			lines []string
		)

		BeforeEach(func() {
			original := monitoring.Logger()
			DeferCleanup(func() { monitoring.SetLogger(original) })
			lines = nil
			monitoring.SetLogger(func(format string, v ...interface{}) {
				mu.Lock()
				lines = append(lines, fmt.Sprintf(format, v...))
				mu.Unlock()
			})
		})

		It("records a late tick and keeps running", func() {
			first := true
			Expect(looper.Register(loop.Funcs{Loop: func(float64) {
				if first {
					first = false
					clock.Set(clock.Now().Add(3 * period / 2))
				}
			}})).To(Succeed())
			Expect(looper.Start()).To(Succeed())
			advance(1)
			advance(1)
			Expect(looper.Stop()).To(Succeed())

			stats := looper.Stats()
			Expect(stats.Ticks).To(Equal(uint64(2)))
			Expect(stats.LateTicks).To(Equal(uint64(1)))
			Expect(stats.MaxWork).To(Equal(3 * period / 2))

			mu.Lock()
			defer mu.Unlock()
			Expect(lines).To(HaveLen(1))
			Expect(strings.HasPrefix(lines[0], "[WARN] loop:")).To(BeTrue())
		})
	})
})
