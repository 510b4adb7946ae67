// Package panicguard implements spec.md section 4.J's Panic Layer:
// dual-PIN verification, a dead-man timer, and a one-way wipe-state
// latch that routes UI reads to decoy data once tripped. It does not
// itself own the encrypted blobs it instructs to be wiped — that
// belongs to whatever implements Wiper, typically pkg/localstore.
//
// The package is named panicguard, not panic, so that importing it
// does not shadow the builtin panic/recover identifiers at call sites.
package panicguard

import (
	"errors"
	"sync"
	"time"

	"github.com/ElMoorish/comlock/internal/aead"
	"github.com/ElMoorish/comlock/internal/logging"
)

var (
	ErrPinTooShort          = errors.New("panic: pin must be at least 4 characters")
	ErrNoPinConfigured      = errors.New("panic: cannot set a duress pin before a normal pin exists")
	ErrDuressMatchesPin     = errors.New("panic: duress pin must differ from the normal pin")
	ErrPanicGestureDisabled = errors.New("panic: panic gesture is not enabled")
)

// WipeReason names why a wipe was triggered, per spec.md section 3's
// wipe state model.
type WipeReason int

const (
	NotWiped WipeReason = iota
	DuressPin
	DeadManSwitch
	MaxAttempts
	PanicGesture
	ManualWipe
)

// Reason labels the outcome of an unlock attempt. Per spec.md section 7,
// callers must only branch on UnlockResult.Success and .Decoy in any
// user-observable way; Reason exists for logging/testing, not for UI
// control flow that would leak which wipe path fired.
type Reason string

const (
	ReasonAuthenticated Reason = "authenticated"
	ReasonNoPinRequired Reason = "no_pin_required"
	ReasonDeadManSwitch Reason = "dead_man_switch"
	ReasonDuressPin     Reason = "duress_pin"
	ReasonMaxAttempts   Reason = "max_attempts"
	ReasonInvalid       Reason = "invalid"
)

// UnlockResult is the uniformly-shaped result spec.md section 7
// requires: every path but Invalid returns Success=true, with Decoy
// distinguishing a real unlock from a decoy/wipe branch.
type UnlockResult struct {
	Success           bool
	Decoy             bool
	Reason            Reason
	RemainingAttempts int
}

// WipeState is the one-way latch spec.md section 3 defines.
type WipeState struct {
	Wiped  bool
	Reason WipeReason
}

// Config is spec.md section 3's security config.
type Config struct {
	PinHash             [32]byte
	PinSet              bool
	DuressPinHash       [32]byte
	DuressSet           bool
	DeadManDays         int
	LastAccessed        time.Time
	FailedAttempts      int
	MaxFailedAttempts   int
	PanicGestureEnabled bool
	SecurityEnabled     bool
}

// Wiper is implemented by the storage layer (pkg/localstore) that owns
// the encrypted blobs a wipe must destroy.
type Wiper interface {
	SecureWipeAll() error
}

// DecoyContact and DecoyMessage are the minimal shapes spec.md's "out of
// scope: decoy content authoring" leaves for a UI layer to populate;
// this package only specifies the retrieval contract.
type DecoyContact struct {
	Alias string
}

type DecoyMessage struct {
	Body string
}

// DecoyProvider supplies the pre-populated decoy view served while
// WipeState.Wiped is true.
type DecoyProvider interface {
	DecoyContacts() []DecoyContact
	DecoyMessages() []DecoyMessage
}

var (
	ErrNotWiped        = errors.New("panic: not in wiped state")
	ErrNoDecoyProvider = errors.New("panic: no decoy provider configured")
)

// Layer is the mutex-guarded state machine described in spec.md section
// 4.J, matching the "security_config, wipe_state" slots in section 5's
// shared-state discipline.
type Layer struct {
	mu     sync.Mutex
	config Config
	wipe   WipeState
	wiper  Wiper
	decoys DecoyProvider
}

// New builds an unconfigured Layer. wiper may be nil (wipes become a
// local no-op on the latch only, useful for tests); decoys may be set
// later with SetDecoyProvider.
func New(wiper Wiper) *Layer {
	return &Layer{wiper: wiper}
}

// SetDecoyProvider wires the UI-supplied decoy content source.
func (l *Layer) SetDecoyProvider(decoys DecoyProvider) {
	l.mu.Lock()
	l.decoys = decoys
	l.mu.Unlock()
}

// SetupPin establishes the normal unlock PIN, per spec.md section 4.J.
func (l *Layer) SetupPin(pin string, now time.Time) error {
	if len(pin) < 4 {
		return ErrPinTooShort
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.PinHash = aead.HashPIN(pin)
	l.config.PinSet = true
	l.config.SecurityEnabled = true
	l.config.LastAccessed = now
	return nil
}

// SetupDuressPin establishes a second PIN that silently triggers a wipe
// when entered, per spec.md section 4.J. Requires a normal PIN to
// already exist, and rejects a candidate equal to it (constant-time).
func (l *Layer) SetupDuressPin(pin string) error {
	if len(pin) < 4 {
		return ErrPinTooShort
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.config.PinSet {
		return ErrNoPinConfigured
	}
	candidate := aead.HashPIN(pin)
	if aead.ConstantTimeEqualHash(candidate, l.config.PinHash) {
		return ErrDuressMatchesPin
	}
	l.config.DuressPinHash = candidate
	l.config.DuressSet = true
	return nil
}

// EnableSecurity marks the security subsystem active without setting a
// PIN. spec.md section 3 models security_enabled as independent of
// whether pin_hash is set, which is what lets Attempt's "no_pin_required"
// branch distinguish "no PIN configured yet" from "security off
// entirely."
func (l *Layer) EnableSecurity() {
	l.mu.Lock()
	l.config.SecurityEnabled = true
	l.mu.Unlock()
}

// SetDeadManDays configures the dead-man switch window. Zero disables it.
func (l *Layer) SetDeadManDays(days int) {
	l.mu.Lock()
	l.config.DeadManDays = days
	l.mu.Unlock()
}

// SetMaxFailedAttempts configures the wipe-on-lockout threshold. Zero
// disables it.
func (l *Layer) SetMaxFailedAttempts(max int) {
	l.mu.Lock()
	l.config.MaxFailedAttempts = max
	l.mu.Unlock()
}

// SetPanicGestureEnabled toggles whether PanicGesture is armed.
func (l *Layer) SetPanicGestureEnabled(enabled bool) {
	l.mu.Lock()
	l.config.PanicGestureEnabled = enabled
	l.mu.Unlock()
}

// IsDeadManTriggered is the pure predicate spec.md section 8 names as a
// testable invariant: "dead_man_days > 0 ∧ floor((now-last_accessed)/86400) ≥ dead_man_days".
func IsDeadManTriggered(cfg Config, now time.Time) bool {
	if cfg.DeadManDays <= 0 {
		return false
	}
	elapsedDays := int(now.Sub(cfg.LastAccessed).Hours() / 24)
	return elapsedDays >= cfg.DeadManDays
}

// DaysUntilWipe counts down the days remaining before the dead-man
// switch fires, floored at zero once it has (or would have on the next
// access check), per spec.md section 8 scenario 7. Returns 0 when the
// dead-man switch is disabled, since there is no wipe to count down to.
func DaysUntilWipe(cfg Config, now time.Time) int {
	if cfg.DeadManDays <= 0 {
		return 0
	}
	elapsedDays := int(now.Sub(cfg.LastAccessed).Hours() / 24)
	remaining := cfg.DeadManDays - elapsedDays
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Attempt runs the unlock state machine spec.md section 4.J describes
// for a single PIN entry.
func (l *Layer) Attempt(pin string, now time.Time) UnlockResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if IsDeadManTriggered(l.config, now) {
		l.triggerWipeLocked(DeadManSwitch)
		return UnlockResult{Success: true, Decoy: true, Reason: ReasonDeadManSwitch}
	}

	candidate := aead.HashPIN(pin)

	if l.config.DuressSet && aead.ConstantTimeEqualHash(candidate, l.config.DuressPinHash) {
		l.triggerWipeLocked(DuressPin)
		return UnlockResult{Success: true, Decoy: true, Reason: ReasonDuressPin}
	}

	if l.config.PinSet && aead.ConstantTimeEqualHash(candidate, l.config.PinHash) {
		l.config.LastAccessed = now
		l.config.FailedAttempts = 0
		return UnlockResult{Success: true, Decoy: false, Reason: ReasonAuthenticated}
	}

	if !l.config.PinSet && l.config.SecurityEnabled {
		return UnlockResult{Success: true, Decoy: false, Reason: ReasonNoPinRequired}
	}

	l.config.FailedAttempts++
	if l.config.MaxFailedAttempts > 0 && l.config.FailedAttempts >= l.config.MaxFailedAttempts {
		l.triggerWipeLocked(MaxAttempts)
		return UnlockResult{Success: true, Decoy: true, Reason: ReasonMaxAttempts}
	}

	remaining := 0
	if l.config.MaxFailedAttempts > 0 {
		remaining = l.config.MaxFailedAttempts - l.config.FailedAttempts
	}
	return UnlockResult{Success: false, Decoy: false, Reason: ReasonInvalid, RemainingAttempts: remaining}
}

// PanicGesture bypasses PIN entry and wipes immediately, if armed.
func (l *Layer) PanicGesture() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.config.PanicGestureEnabled {
		return ErrPanicGestureDisabled
	}
	l.triggerWipeLocked(PanicGesture)
	return nil
}

// ManualWipe triggers an explicit, user-initiated wipe outside the PIN
// flow (e.g. a "wipe this device" action while already unlocked).
func (l *Layer) ManualWipe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.triggerWipeLocked(ManualWipe)
}

// triggerWipeLocked must be called with mu held.
func (l *Layer) triggerWipeLocked(reason WipeReason) {
	l.wipe = WipeState{Wiped: true, Reason: reason}
	if l.wiper != nil {
		if err := l.wiper.SecureWipeAll(); err != nil {
			logging.Errorf("panic layer: secure wipe failed: %v", err)
		}
	}
}

// ShouldShowDecoy reports whether the wipe latch is tripped. It stays
// true until Reset is called explicitly, per spec.md section 8.
func (l *Layer) ShouldShowDecoy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wipe.Wiped
}

// WipeState returns a copy of the current latch state.
func (l *Layer) WipeState() WipeState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wipe
}

// Reset clears the wipe latch, e.g. after the device has been
// re-provisioned from backup and the decoy view is no longer needed.
func (l *Layer) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wipe = WipeState{}
}

// GetDecoyContacts serves the decoy contact list while wiped, per
// spec.md section 4.J: "the real ratchet, contacts, and identity must
// be made unreachable from that code path."
func (l *Layer) GetDecoyContacts() ([]DecoyContact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.wipe.Wiped {
		return nil, ErrNotWiped
	}
	if l.decoys == nil {
		return nil, ErrNoDecoyProvider
	}
	return l.decoys.DecoyContacts(), nil
}

// GetDecoyMessages serves the decoy message list while wiped.
func (l *Layer) GetDecoyMessages() ([]DecoyMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.wipe.Wiped {
		return nil, ErrNotWiped
	}
	if l.decoys == nil {
		return nil, ErrNoDecoyProvider
	}
	return l.decoys.DecoyMessages(), nil
}
