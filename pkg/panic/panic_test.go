package panicguard_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElMoorish/comlock/pkg/localstore"
	panicguard "github.com/ElMoorish/comlock/pkg/panic"
)

type fakeWiper struct {
	calls int
	err   error
}

func (f *fakeWiper) SecureWipeAll() error {
	f.calls++
	return f.err
}

type fakeDecoys struct{}

func (fakeDecoys) DecoyContacts() []panicguard.DecoyContact {
	return []panicguard.DecoyContact{{Alias: "decoy"}}
}

func (fakeDecoys) DecoyMessages() []panicguard.DecoyMessage {
	return []panicguard.DecoyMessage{{Body: "nothing to see here"}}
}

func TestSetupPinRejectsShort(t *testing.T) {
	l := panicguard.New(nil)
	err := l.SetupPin("123", time.Now())
	assert.ErrorIs(t, err, panicguard.ErrPinTooShort)
}

func TestAuthenticatedUnlockResetsFailedAttempts(t *testing.T) {
	l := panicguard.New(nil)
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, l.SetupPin("1234", now))
	l.SetMaxFailedAttempts(3)

	_ = l.Attempt("wrong", now)
	res := l.Attempt("1234", now.Add(time.Minute))
	assert.True(t, res.Success)
	assert.False(t, res.Decoy)
	assert.Equal(t, panicguard.ReasonAuthenticated, res.Reason)

	res = l.Attempt("wrong", now.Add(2*time.Minute))
	assert.Equal(t, 2, res.RemainingAttempts)
}

func TestInvalidPinReportsRemainingAttempts(t *testing.T) {
	l := panicguard.New(nil)
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, l.SetupPin("1234", now))
	l.SetMaxFailedAttempts(3)

	res := l.Attempt("0000", now)
	assert.False(t, res.Success)
	assert.Equal(t, panicguard.ReasonInvalid, res.Reason)
	assert.Equal(t, 2, res.RemainingAttempts)
}

func TestMaxFailedAttemptsTriggersWipe(t *testing.T) {
	wiper := &fakeWiper{}
	l := panicguard.New(wiper)
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, l.SetupPin("1234", now))
	l.SetMaxFailedAttempts(2)

	_ = l.Attempt("0000", now)
	res := l.Attempt("0000", now)

	assert.True(t, res.Success)
	assert.True(t, res.Decoy)
	assert.Equal(t, panicguard.ReasonMaxAttempts, res.Reason)
	assert.True(t, l.ShouldShowDecoy())
	assert.Equal(t, panicguard.MaxAttempts, l.WipeState().Reason)
	assert.Equal(t, 1, wiper.calls)
}

func TestDuressPinTriggersWipeWithoutRevealingItself(t *testing.T) {
	wiper := &fakeWiper{}
	l := panicguard.New(wiper)
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, l.SetupPin("1234", now))
	require.NoError(t, l.SetupDuressPin("9999"))

	res := l.Attempt("9999", now)
	assert.True(t, res.Success)
	assert.True(t, res.Decoy)
	assert.Equal(t, panicguard.ReasonDuressPin, res.Reason)
	assert.Equal(t, 1, wiper.calls)
}

func TestSetupDuressPinRejectsMatchingNormalPin(t *testing.T) {
	l := panicguard.New(nil)
	require.NoError(t, l.SetupPin("1234", time.Now()))
	err := l.SetupDuressPin("1234")
	assert.ErrorIs(t, err, panicguard.ErrDuressMatchesPin)
}

func TestSetupDuressPinRequiresNormalPinFirst(t *testing.T) {
	l := panicguard.New(nil)
	err := l.SetupDuressPin("9999")
	assert.ErrorIs(t, err, panicguard.ErrNoPinConfigured)
}

func TestDeadManSwitchTriggersWipe(t *testing.T) {
	wiper := &fakeWiper{}
	l := panicguard.New(wiper)
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, l.SetupPin("1234", now))
	l.SetDeadManDays(7)

	res := l.Attempt("1234", now.Add(8*24*time.Hour))
	assert.True(t, res.Success)
	assert.True(t, res.Decoy)
	assert.Equal(t, panicguard.ReasonDeadManSwitch, res.Reason)
	assert.Equal(t, panicguard.DeadManSwitch, l.WipeState().Reason)
}

func TestIsDeadManTriggeredBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := panicguard.Config{DeadManDays: 7, LastAccessed: now}

	assert.False(t, panicguard.IsDeadManTriggered(cfg, now.Add(6*24*time.Hour)))
	assert.True(t, panicguard.IsDeadManTriggered(cfg, now.Add(7*24*time.Hour)))
	assert.False(t, panicguard.IsDeadManTriggered(panicguard.Config{DeadManDays: 0, LastAccessed: now}, now.Add(365*24*time.Hour)))
}

func TestDaysUntilWipeCountsDown(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	expired := panicguard.Config{DeadManDays: 7, LastAccessed: now.Add(-10 * 24 * time.Hour)}
	assert.Equal(t, 0, panicguard.DaysUntilWipe(expired, now))

	active := panicguard.Config{DeadManDays: 7, LastAccessed: now.Add(-3 * 24 * time.Hour)}
	assert.Equal(t, 4, panicguard.DaysUntilWipe(active, now))

	disabled := panicguard.Config{DeadManDays: 0, LastAccessed: now.Add(-100 * 24 * time.Hour)}
	assert.Equal(t, 0, panicguard.DaysUntilWipe(disabled, now))
}

func TestNoPinRequiredWhenSecurityEnabledButPinUnset(t *testing.T) {
	l := panicguard.New(nil)
	l.EnableSecurity()

	res := l.Attempt("anything", time.Now())
	assert.True(t, res.Success)
	assert.False(t, res.Decoy)
	assert.Equal(t, panicguard.ReasonNoPinRequired, res.Reason)
}

func TestInvalidWhenSecurityDisabledAndNoPin(t *testing.T) {
	l := panicguard.New(nil)
	res := l.Attempt("anything", time.Now())
	assert.False(t, res.Success)
	assert.Equal(t, panicguard.ReasonInvalid, res.Reason)
}

func TestPanicGestureRequiresEnabled(t *testing.T) {
	l := panicguard.New(nil)
	err := l.PanicGesture()
	assert.ErrorIs(t, err, panicguard.ErrPanicGestureDisabled)
}

func TestPanicGestureWipesWhenEnabled(t *testing.T) {
	wiper := &fakeWiper{}
	l := panicguard.New(wiper)
	l.SetPanicGestureEnabled(true)

	require.NoError(t, l.PanicGesture())
	assert.True(t, l.ShouldShowDecoy())
	assert.Equal(t, panicguard.PanicGesture, l.WipeState().Reason)
}

func TestDecoyAccessRequiresWipedState(t *testing.T) {
	l := panicguard.New(nil)
	l.SetDecoyProvider(fakeDecoys{})

	_, err := l.GetDecoyContacts()
	assert.ErrorIs(t, err, panicguard.ErrNotWiped)

	l.ManualWipe()
	contacts, err := l.GetDecoyContacts()
	require.NoError(t, err)
	assert.Len(t, contacts, 1)

	messages, err := l.GetDecoyMessages()
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestDecoyAccessWithoutProviderErrors(t *testing.T) {
	l := panicguard.New(nil)
	l.ManualWipe()
	_, err := l.GetDecoyContacts()
	assert.ErrorIs(t, err, panicguard.ErrNoDecoyProvider)
}

func TestResetClearsWipeLatch(t *testing.T) {
	l := panicguard.New(nil)
	l.ManualWipe()
	require.True(t, l.ShouldShowDecoy())

	l.Reset()
	assert.False(t, l.ShouldShowDecoy())
	assert.Equal(t, panicguard.NotWiped, l.WipeState().Reason)
}

func TestSecureWipeFailureIsLoggedNotFatal(t *testing.T) {
	wiper := &fakeWiper{err: errors.New("disk full")}
	l := panicguard.New(wiper)
	l.ManualWipe()
	assert.True(t, l.ShouldShowDecoy())
	assert.Equal(t, 1, wiper.calls)
}

func TestWiresRealLocalstoreAsWiper(t *testing.T) {
	dir := t.TempDir()
	store := localstore.Open(dir)
	require.NoError(t, store.SealBlob(localstore.SecurityFile, []byte("1234"), []byte("config")))

	l := panicguard.New(store)
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, l.SetupPin("1234", now))
	require.NoError(t, l.SetupDuressPin("9999"))

	res := l.Attempt("9999", now)
	assert.True(t, res.Decoy)

	_, err := os.Stat(filepath.Join(dir, localstore.SecurityFile))
	assert.True(t, os.IsNotExist(err))
}
