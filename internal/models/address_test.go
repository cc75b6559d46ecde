package models

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("  0x742d35Cc6634C0532925a3b8D99D94e13aECCeA8 ")
	require.NoError(t, err)
	assert.Equal(t, "0x742d35cc6634c0532925a3b8d99d94e13aeccea8", got)

	got, err = NormalizeAddress("742d35cc6634c0532925a3b8d99d94e13aeccea8")
	require.NoError(t, err)
	assert.Equal(t, "0x742d35cc6634c0532925a3b8d99d94e13aeccea8", got)
}

func TestNormalizeAddressRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "0x123", "not-an-address", "0xZZ2d35cc6634c0532925a3b8d99d94e13aeccea8"} {
		_, err := NormalizeAddress(in)
		assert.True(t, errors.Is(err, ErrInvalidAddress), in)
	}
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress("0xABCdef0000000000000000000000000000000001", "0xabcdef0000000000000000000000000000000001"))
	assert.False(t, SameAddress("0xabcdef0000000000000000000000000000000001", "0xabcdef0000000000000000000000000000000002"))
}

func TestPushSubscriptionValid(t *testing.T) {
	sub := PushSubscription{Endpoint: "https://push.example/1", Keys: PushKeys{P256dh: "p", Auth: "a"}}
	assert.True(t, sub.Valid())

	sub.Keys.Auth = ""
	assert.False(t, sub.Valid())
}
