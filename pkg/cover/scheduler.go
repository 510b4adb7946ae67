// Package cover implements spec.md section 4.H's cover traffic
// scheduler: a background Poisson-timed emitter of loop packets meant
// to keep outbound traffic volume roughly constant regardless of
// whether the user is actively messaging, with a battery-aware
// degraded mode.
package cover

import (
	"crypto/rand"
	mathrand "math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ElMoorish/comlock/internal/logging"
	"github.com/ElMoorish/comlock/pkg/mixclient"
	"github.com/ElMoorish/comlock/pkg/sphinx"
)

// tier names the anonymity budget tiers spec.md section 4.H defines,
// each with a fixed target packets-per-second rate.
type tier int

const (
	tierLow tier = iota
	tierMedium
	tierMax
)

// Budget selects a rate tier and an optional extra jitter duration
// mixed into every scheduled inter-packet delay. Jitter is additive
// uniform noise on top of the Poisson draw, grounded on the jitter
// knob original_source/comlock-transport/src/cover.rs exposes to avoid
// inter-packet gaps that line up with OS timer granularity; zero
// disables it.
type Budget struct {
	t      tier
	Jitter time.Duration
}

var (
	BudgetLow    = Budget{t: tierLow}
	BudgetMedium = Budget{t: tierMedium}
	BudgetMax    = Budget{t: tierMax}
)

// WithJitter returns a copy of b with its jitter knob set to d.
func (b Budget) WithJitter(d time.Duration) Budget {
	b.Jitter = d
	return b
}

func (b Budget) pps() float64 {
	switch b.t {
	case tierLow:
		return 0.1
	case tierMedium:
		return 0.5
	case tierMax:
		return 2.0
	default:
		return 0.1
	}
}

const (
	loopPayloadSize = 256

	// batterySaverMultiplier is the rate multiplier spec.md section 4.H
	// applies when battery-saver is enabled and the battery level is
	// below batterySaverThreshold.
	batterySaverMultiplier = 0.25

	// batterySaverThreshold decides "battery < threshold" for the
	// multiplier above. The spec leaves the exact cutoff unstated;
	// 20% matches the level most mobile OSes already flag as low
	// battery, so reusing it needs no separate user-facing concept.
	batterySaverThreshold = 0.20

	// guardLambda is the section 4.H fallback rate used when the
	// configured rate collapses to zero (scheduler disabled mid-loop,
	// or a zero budget).
	guardLambda = 0.1
)

// loopMarkerMailboxID is the well-known mailbox id loop packets carry,
// distinguishing them from real messages at the exit hop without
// revealing anything about the sender's real mailboxes.
var loopMarkerMailboxID = [32]byte{
	0xC0, 0x4E, 0xED, 0xEC, 0x0D, 0xED, 0xBA, 0xBE,
	0xC0, 0x4E, 0xED, 0xEC, 0x0D, 0xED, 0xBA, 0xBE,
	0xC0, 0x4E, 0xED, 0xEC, 0x0D, 0xED, 0xBA, 0xBE,
	0xC0, 0x4E, 0xED, 0xEC, 0x0D, 0xED, 0xBA, 0xBE,
}

// Metrics is a snapshot of the scheduler's exposed counters.
type Metrics struct {
	PacketsSent    uint64
	LoopsCompleted uint64
	CurrentRate    float64
	Degraded       bool
}

// Scheduler runs the background loop-packet emitter described in
// spec.md section 4.H. A Scheduler that is never Started, or one that
// has been Stopped, emits nothing.
type Scheduler struct {
	client *mixclient.Client

	mu                  sync.Mutex
	running             bool
	stop                chan struct{}
	budget              Budget
	batterySaverEnabled bool
	batteryLevel        float64

	packetsSent    uint64
	loopsCompleted uint64
}

// New builds a disabled Scheduler targeting client's outbound sink.
// Call Start to begin emitting.
func New(client *mixclient.Client, budget Budget) *Scheduler {
	return &Scheduler{
		client:       client,
		budget:       budget,
		batteryLevel: 1.0,
	}
}

// SetBudget changes the target rate at runtime.
func (s *Scheduler) SetBudget(b Budget) {
	s.mu.Lock()
	s.budget = b
	s.mu.Unlock()
}

// SetBatteryState updates the inputs to the battery-adaptive
// multiplier: whether battery-saver mode is on, and the current
// battery level in [0, 1].
func (s *Scheduler) SetBatteryState(saverEnabled bool, level float64) {
	s.mu.Lock()
	s.batterySaverEnabled = saverEnabled
	s.batteryLevel = level
	s.mu.Unlock()
}

// Start begins the background Poisson loop. Calling Start while
// already running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	go s.loop(stop)
}

// Stop halts the background loop. It does not block for the loop's
// current sleep to elapse.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()
}

// Running reports whether the background loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Snapshot reports the current metrics spec.md section 4.H exposes.
func (s *Scheduler) Snapshot() Metrics {
	s.mu.Lock()
	lambda := s.effectiveLambda()
	degraded := s.batterySaverEnabled && s.batteryLevel < batterySaverThreshold
	s.mu.Unlock()
	return Metrics{
		PacketsSent:    atomic.LoadUint64(&s.packetsSent),
		LoopsCompleted: atomic.LoadUint64(&s.loopsCompleted),
		CurrentRate:    lambda,
		Degraded:       degraded,
	}
}

// effectiveLambda must be called with mu held.
func (s *Scheduler) effectiveLambda() float64 {
	multiplier := 1.0
	if s.batterySaverEnabled && s.batteryLevel < batterySaverThreshold {
		multiplier = batterySaverMultiplier
	}
	lambda := s.budget.pps() * multiplier
	if lambda <= 0 {
		lambda = guardLambda
	}
	return lambda
}

func (s *Scheduler) loop(stop chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("cover traffic scheduler panic: %v", r)
		}
	}()
	for {
		s.mu.Lock()
		lambda := s.effectiveLambda()
		jitter := s.budget.Jitter
		s.mu.Unlock()

		delta := time.Duration(mathrand.ExpFloat64() / lambda * float64(time.Second))
		if jitter > 0 {
			delta += time.Duration(mathrand.Int64N(int64(jitter)))
		}
		timer := time.NewTimer(delta)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		if !s.Running() {
			return
		}
		s.emitLoopPacket()
	}
}

// emitLoopPacket builds and sends one loop packet: a 3-hop
// gateway -> mix -> gateway route, a random 256-byte payload, and the
// well-known loop marker mailbox id.
func (s *Scheduler) emitLoopPacket() {
	route, delays, err := s.client.LoopRoute()
	if err != nil {
		logging.Warnf("cover traffic: no loop route available: %v", err)
		return
	}

	payload := make([]byte, loopPayloadSize)
	if _, err := rand.Read(payload); err != nil {
		logging.Errorf("cover traffic: generating loop payload: %v", err)
		return
	}

	pkt, err := sphinx.Build(route, loopMarkerMailboxID, payload, delays)
	if err != nil {
		logging.Errorf("cover traffic: building loop packet: %v", err)
		return
	}

	select {
	case s.client.Outbound <- pkt.Encode():
	default:
		logging.Warn("cover traffic: outbound sink full, dropping loop packet")
		return
	}

	atomic.AddUint64(&s.packetsSent, 1)
	if mathrand.Float64() < 0.9 {
		atomic.AddUint64(&s.loopsCompleted, 1)
	}
}
