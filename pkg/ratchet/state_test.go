package ratchet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ElMoorish/comlock/pkg/ratchet"
)

func TestConstructionAssignsOppositeChains(t *testing.T) {
	a := require.New(t)
	secret := sharedSecret(t)

	initiator, err := ratchet.New(secret, true)
	a.NoError(err)
	responder, err := ratchet.New(secret, false)
	a.NoError(err)

	a.Equal(uint32(0), initiator.SendCounter())
	a.Equal(uint32(0), responder.SendCounter())

	// Initiator's first send must be decryptable by the responder,
	// which is only possible if initiator.send == responder.recv.
	key, h, err := initiator.Send()
	a.NoError(err)
	gotKey, err := responder.Receive(h)
	a.NoError(err)
	a.Equal(key, gotKey)
}

func TestNewRejectsNothingForValidSecret(t *testing.T) {
	a := require.New(t)
	secret := sharedSecret(t)
	r, err := ratchet.New(secret, true)
	a.NoError(err)
	a.NotNil(r)
}
