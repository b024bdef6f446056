package editor

import (
	"sync"
	"time"
)

// State of a Stopwatch.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// TickerFunc starts a ticker and returns its channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Stopwatch counts whole seconds while running. Starting a stopped watch
// resumes from the elapsed count.
type Stopwatch struct {
	mu        sync.Mutex
	state     State
	elapsed   int
	newTicker TickerFunc
	stop      chan struct{}
	done      chan struct{}
}

func NewStopwatch(newTicker TickerFunc) *Stopwatch {
	if newTicker == nil {
		newTicker = realTicker
	}
	return &Stopwatch{newTicker: newTicker}
}

// Start begins counting. Starting a running watch does nothing.
func (w *Stopwatch) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Running {
		return
	}
	w.state = Running
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	ticks, stopTicker := w.newTicker(time.Second)
	go w.run(ticks, stopTicker, w.stop, w.done)
}

func (w *Stopwatch) run(ticks <-chan time.Time, stopTicker func(), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer stopTicker()
	for {
		select {
		case <-ticks:
			w.mu.Lock()
			if w.state == Running {
				w.elapsed++
			}
			w.mu.Unlock()
		case <-stop:
			return
		}
	}
}

// Stop halts the count and returns the elapsed seconds. The ticker goroutine
// has exited when Stop returns.
func (w *Stopwatch) Stop() int {
	w.halt(Stopped)
	return w.Elapsed()
}

// Reset halts the watch and clears the count.
func (w *Stopwatch) Reset() {
	w.halt(Idle)
	w.mu.Lock()
	w.elapsed = 0
	w.mu.Unlock()
}

func (w *Stopwatch) halt(next State) {
	w.mu.Lock()
	if w.state != Running {
		if next == Idle {
			w.state = Idle
		}
		w.mu.Unlock()
		return
	}
	w.state = next
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mu.Unlock()

	close(stop)
	<-done
}

func (w *Stopwatch) Elapsed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.elapsed
}

func (w *Stopwatch) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}
