// Package breaker implements the explicit resilient-call wrapper
// spec.md §9 calls for in place of the source's declarative
// @CircuitBreaker annotation. No circuit-breaker library appeared in
// the retrieved example corpus (see DESIGN.md), so this is
// hand-written per that design note. Its state gauge is registered
// with prometheus.Register, reusing an already registered gauge of the
// same name and labels.
package breaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config enumerates the breaker knobs from spec.md §4.3.
type Config struct {
	WindowSize       int
	FailureThreshold float64
	OpenDuration     time.Duration
	// HalfOpenProbes bounds how many concurrent probes are allowed
	// through while HALF_OPEN, per §4.3 ("a small number of probes").
	HalfOpenProbes int
}

func DefaultConfig() Config {
	return Config{WindowSize: 20, FailureThreshold: 0.5, OpenDuration: 5 * time.Second, HalfOpenProbes: 1}
}

// Breaker is a stateful gate in front of an outbound call (glossary).
// Safe for concurrent use.
type Breaker struct {
	cfg Config

	mu           sync.Mutex
	state        State
	openedAt     time.Time
	window       []bool // true = success
	windowPos    int
	windowFilled int
	halfOpenSlot int // probes currently in flight while HALF_OPEN

	stateGauge prometheus.Gauge
}

func New(name string, cfg Config) *Breaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	b := &Breaker{
		cfg:    cfg,
		window: make([]bool, cfg.WindowSize),
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "coordinator_ledger_breaker_state",
			Help:        "Circuit breaker state: 0=closed, 1=open, 2=half_open",
			ConstLabels: prometheus.Labels{"breaker": name},
		}),
	}
	if err := prometheus.Register(b.stateGauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			b.stateGauge = are.ExistingCollector.(prometheus.Gauge)
		}
	}
	return b
}

// Allow reports whether a call may proceed. It also performs the
// OPEN -> HALF_OPEN transition once openDuration has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.cfg.OpenDuration {
			b.state = HalfOpen
			b.halfOpenSlot = 0
			b.stateGauge.Set(float64(HalfOpen))
		} else {
			return false
		}
		fallthrough
	case HalfOpen:
		if b.halfOpenSlot >= b.cfg.HalfOpenProbes {
			return false
		}
		b.halfOpenSlot++
		return true
	default:
		return false
	}
}

// RecordSuccess feeds a successful outcome into the rolling window. A
// success while HALF_OPEN closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.close()
		return
	}
	b.record(true)
	b.evaluate()
}

// RecordFailure feeds a failed outcome into the rolling window. A
// failure while HALF_OPEN re-opens the breaker immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.open()
		return
	}
	b.record(false)
	b.evaluate()
}

func (b *Breaker) record(success bool) {
	b.window[b.windowPos] = success
	b.windowPos = (b.windowPos + 1) % len(b.window)
	if b.windowFilled < len(b.window) {
		b.windowFilled++
	}
}

func (b *Breaker) evaluate() {
	if b.windowFilled < len(b.window) {
		return // not enough samples yet to judge a rate
	}
	failures := 0
	for _, ok := range b.window {
		if !ok {
			failures++
		}
	}
	rate := float64(failures) / float64(len(b.window))
	if rate >= b.cfg.FailureThreshold {
		b.open()
	}
}

func (b *Breaker) open() {
	b.state = Open
	b.openedAt = time.Now()
	b.stateGauge.Set(float64(Open))
}

func (b *Breaker) close() {
	b.state = Closed
	b.windowPos = 0
	b.windowFilled = 0
	for i := range b.window {
		b.window[i] = false
	}
	b.stateGauge.Set(float64(Closed))
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
