package cover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElMoorish/comlock/pkg/exchange"
	"github.com/ElMoorish/comlock/pkg/mixclient"
	"github.com/ElMoorish/comlock/pkg/sphinx"
)

func makeTopologyClient(t *testing.T) *mixclient.Client {
	t.Helper()
	ourSecret, err := exchange.NewECDH()
	require.NoError(t, err)
	c := mixclient.New(ourSecret, 8, 8)

	gwSecret, err := exchange.NewECDH()
	require.NoError(t, err)
	mixSecret, err := exchange.NewECDH()
	require.NoError(t, err)

	c.UpdateTopology([]*sphinx.Node{
		{PublicKey: gwSecret.PublicKeyRaw(), Address: "gateway.example:9000", Layer: sphinx.LayerGateway},
		{PublicKey: mixSecret.PublicKeyRaw(), Address: "mix.example:9000", Layer: sphinx.LayerMix},
	})
	return c
}

func TestBudgetPPS(t *testing.T) {
	assert.Equal(t, 0.1, BudgetLow.pps())
	assert.Equal(t, 0.5, BudgetMedium.pps())
	assert.Equal(t, 2.0, BudgetMax.pps())
}

func TestWithJitterSetsFieldWithoutAffectingRate(t *testing.T) {
	b := BudgetMedium.WithJitter(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, b.Jitter)
	assert.Equal(t, BudgetMedium.pps(), b.pps())
	assert.Zero(t, BudgetMedium.Jitter)
}

func TestEffectiveLambdaAppliesBatteryMultiplier(t *testing.T) {
	s := New(makeTopologyClient(t), BudgetMedium)
	s.mu.Lock()
	full := s.effectiveLambda()
	s.mu.Unlock()
	assert.Equal(t, 0.5, full)

	s.SetBatteryState(true, 0.1)
	s.mu.Lock()
	degraded := s.effectiveLambda()
	s.mu.Unlock()
	assert.Equal(t, 0.5*batterySaverMultiplier, degraded)
}

func TestEffectiveLambdaFallsBackOnZero(t *testing.T) {
	s := New(makeTopologyClient(t), Budget{t: 99})
	s.mu.Lock()
	lambda := s.effectiveLambda()
	s.mu.Unlock()
	assert.Equal(t, guardLambda, lambda)
}

func TestSnapshotReportsDegradedFlag(t *testing.T) {
	s := New(makeTopologyClient(t), BudgetLow)
	s.SetBatteryState(true, 0.05)
	snap := s.Snapshot()
	assert.True(t, snap.Degraded)
	assert.Equal(t, 0.1*batterySaverMultiplier, snap.CurrentRate)
}

func TestEmitLoopPacketIncrementsMetricsAndDelivers(t *testing.T) {
	c := makeTopologyClient(t)
	s := New(c, BudgetMax)

	s.emitLoopPacket()

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.PacketsSent)

	select {
	case encoded := <-c.Outbound:
		require.Len(t, encoded, sphinx.PacketSize)
		pkt, err := sphinx.Decode(encoded)
		require.NoError(t, err)
		assert.NotNil(t, pkt)
	default:
		t.Fatal("expected a loop packet on Outbound")
	}
}

func TestEmitLoopPacketWithoutTopologyIsNoop(t *testing.T) {
	ourSecret, err := exchange.NewECDH()
	require.NoError(t, err)
	c := mixclient.New(ourSecret, 4, 4)
	s := New(c, BudgetMax)

	s.emitLoopPacket()
	assert.Equal(t, uint64(0), s.Snapshot().PacketsSent)
}

func TestStartStopDoesNotEmitWhenStoppedImmediately(t *testing.T) {
	c := makeTopologyClient(t)
	s := New(c, BudgetLow)

	s.Start()
	s.Stop()
	assert.False(t, s.Running())

	// Starting and immediately stopping should not leave the
	// background goroutine running a subsequent emission.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, uint64(0), s.Snapshot().PacketsSent)
}
