package monitoring

import (
	"fmt"
	"sync"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("no-op logger should not reach the previous logger")
	}
}

func TestLevelPrefixes(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	Infof("a %d", 1)
	Warnf("b %d", 2)
	Errorf("c %d", 3)

	want := []string{"[INFO] a 1", "[WARN] b 2", "[ERROR] c 3"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestAsyncDeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	a := NewAsync(func(format string, v ...interface{}) {
		mu.Lock()
		got = append(got, fmt.Sprintf(format, v...))
		mu.Unlock()
	}, 16)

	for i := 0; i < 10; i++ {
		a.Logf("line %d", i)
	}
	a.Close()

	if len(got) != 10 {
		t.Fatalf("got %d lines, want 10", len(got))
	}
	if got[9] != "line 9" {
		t.Errorf("got %q, want %q", got[9], "line 9")
	}
	if a.Dropped() != 0 {
		t.Errorf("dropped %d lines", a.Dropped())
	}
}

func TestAsyncDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	a := NewAsync(func(string, ...interface{}) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}, 2)

	a.Logf("blocks the sink")
	<-started
	for i := 0; i < 5; i++ {
		a.Logf("queued or dropped")
	}
	close(release)
	a.Close()

	if a.Dropped() != 3 {
		t.Errorf("dropped %d, want 3", a.Dropped())
	}
}

func TestSetLoggerWhileLogging(t *testing.T) {
	original := Logger()
	defer SetLogger(original)
	SetLogger(nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					Warnf("tick %d", 1)
				}
			}
		}()
	}

	var mu sync.Mutex
	seen := 0
	for i := 0; i < 100; i++ {
		SetLogger(func(string, ...interface{}) {
			mu.Lock()
			seen++
			mu.Unlock()
		})
		SetLogger(nil)
	}
	close(stop)
	wg.Wait()

	SetLogger(func(string, ...interface{}) {
		mu.Lock()
		seen = -1
		mu.Unlock()
	})
	Infof("last")
	if seen != -1 {
		t.Error("installed logger was not used after concurrent swaps")
	}
}
