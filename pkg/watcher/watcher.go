// Package watcher keeps a document highlighted while it changes.
//
// A Watcher observes child-list and character-data mutations, debounces
// them into a single highlight pass and, on a slower ticker, sweeps for
// content that arrived without a mutation record. Records produced by the
// watcher's own pass and records targeting the tooltip container are
// ignored, so a pass never schedules another one.
package watcher

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/entrhq/gloss/pkg/dom"
	"github.com/entrhq/gloss/pkg/logging"
)

const (
	// DefaultDebounce is the quiet period required before a pass runs.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultSweepInterval is how often the watcher looks for unprocessed
	// content.
	DefaultSweepInterval = 5 * time.Second
	// DefaultContainerID matches the highlighter's tooltip container.
	DefaultContainerID = "gloss-tooltip-container"
)

var (
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("watcher is stopped")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("watcher is already started")
)

var watcherLog *logging.Logger

func init() {
	var err error
	watcherLog, err = logging.NewLogger("watcher")
	if err != nil {
		watcherLog.Warnf("Failed to initialize watcher logger, using stderr fallback: %v", err)
	}
}

// State is the scheduling state of a Watcher.
type State int32

const (
	// Idle means no pass is scheduled.
	Idle State = iota
	// Pending means a debounced pass is armed.
	Pending
	// Running means a pass is executing.
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Options configure a Watcher. Zero values select the defaults.
type Options struct {
	Debounce      time.Duration
	SweepInterval time.Duration
	ContainerID   string
	Logger        *logging.Logger
}

// Watcher schedules highlight passes for one document.
type Watcher struct {
	doc     *dom.Document
	run     func()
	pending func() bool
	opts    Options
	log     *logging.Logger

	mu       sync.Mutex
	state    State
	timer    *time.Timer
	gen      uint64
	passTurn uint64
	started  bool
	stopped  bool
	observer *dom.Observer

	done     chan struct{}
	stopOnce sync.Once
	passes   atomic.Int64
}

// New creates a Watcher. run performs one highlight pass and is always
// called inside a document turn. pending reports whether scoped content is
// still unprocessed; a nil pending disables the sweep.
func New(doc *dom.Document, run func(), pending func() bool, opts Options) (*Watcher, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}
	if run == nil {
		return nil, fmt.Errorf("pass function is required")
	}
	if opts.Debounce < 0 || opts.SweepInterval < 0 {
		return nil, fmt.Errorf("debounce and sweep interval must not be negative")
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.ContainerID == "" {
		opts.ContainerID = DefaultContainerID
	}
	log := opts.Logger
	if log == nil {
		log = watcherLog
	}

	return &Watcher{
		doc:     doc,
		run:     run,
		pending: pending,
		opts:    opts,
		log:     log,
		done:    make(chan struct{}),
	}, nil
}

// Start connects the mutation observer and the sweep ticker.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}
	if w.started {
		return ErrAlreadyStarted
	}

	w.observer = w.doc.Observe(dom.ObserveOptions{ChildList: true, CharacterData: true}, w.onRecords)
	w.started = true
	if w.pending != nil {
		go w.sweepLoop()
	}

	w.log.Debugf("Watching %q: debounce=%s sweep=%s", w.doc.Hostname(), w.opts.Debounce, w.opts.SweepInterval)
	return nil
}

// Stop disconnects the observer and cancels every scheduled pass. It is safe
// to call more than once and from inside a document turn. A pass already
// executing finishes; no pass starts afterwards.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.gen++
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.state = Idle
		obs := w.observer
		w.mu.Unlock()

		if obs != nil {
			obs.Disconnect()
		}
		close(w.done)
		w.log.Debugf("Watcher stopped after %d passes", w.passes.Load())
	})
}

// State returns the current scheduling state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Passes returns the number of passes the watcher has run.
func (w *Watcher) Passes() int64 {
	return w.passes.Load()
}

// RunNow cancels any armed debounce and runs a pass immediately. It must not
// be called from inside a document turn.
func (w *Watcher) RunNow() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.state == Pending {
		w.state = Idle
	}
	w.mu.Unlock()

	w.doc.Do(func() { w.runPass("manual") })
}

// onRecords runs inside the turn that produced recs.
func (w *Watcher) onRecords(recs []dom.MutationRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	qualifying := 0
	for _, rec := range recs {
		if rec.Turn != 0 && rec.Turn == w.passTurn {
			continue
		}
		if dom.InsideID(rec.Target, w.opts.ContainerID) {
			continue
		}
		switch rec.Kind {
		case dom.ChildList:
			if len(rec.Added) > 0 {
				qualifying++
			}
		case dom.CharacterData:
			qualifying++
		}
	}
	if qualifying == 0 {
		return
	}

	w.gen++
	gen := w.gen
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() { w.fire(gen) })
	w.state = Pending
}

func (w *Watcher) fire(gen uint64) {
	w.mu.Lock()
	if w.stopped || gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.doc.Do(func() {
		w.mu.Lock()
		// A mutation may have re-armed the timer while this fire waited for
		// the document.
		stale := gen != w.gen
		if !stale {
			w.timer = nil
		}
		w.mu.Unlock()
		if stale {
			return
		}
		w.runPass("debounce")
	})
}

func (w *Watcher) sweepLoop() {
	ticker := time.NewTicker(w.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.doc.Do(w.sweep)
		}
	}
}

func (w *Watcher) sweep() {
	w.mu.Lock()
	skip := w.stopped || w.state == Pending
	w.mu.Unlock()
	if skip || !w.pending() {
		return
	}
	w.runPass("sweep")
}

// runPass must be called inside a document turn.
func (w *Watcher) runPass(reason string) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.state = Running
	w.passTurn = w.doc.Turn()
	w.mu.Unlock()

	start := time.Now()
	w.run()
	n := w.passes.Add(1)

	w.mu.Lock()
	if w.state == Running {
		w.state = Idle
	}
	w.mu.Unlock()

	w.log.Debugf("Pass %d (%s) finished in %s", n, reason, time.Since(start))
}
