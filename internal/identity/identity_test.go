package identity

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

func TestDeriveClawIDRoundTripsThroughPublicKeyFromClawID(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	id, err := DeriveClawID(pub)
	require.NoError(t, err)

	recovered, err := PublicKeyFromClawID(id)
	require.NoError(t, err)
	assert.Equal(t, pub, recovered)
}

func TestVerifyAcceptsValidSignatureWithinSkew(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := DeriveClawID(pub)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := now.UnixMilli()
	body := []byte(`{"hello":"world"}`)
	sig := Sign(priv, "POST", "/v1/pearls", ts, body)

	v := NewVerifierWithClock(func() time.Time { return now })
	err = v.Verify(Envelope{ClawID: id, Method: "POST", Path: "/v1/pearls", TimestampMs: ts, SignatureB64: sig}, body)
	require.NoError(t, err)
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := DeriveClawID(pub)
	require.NoError(t, err)

	reqTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := reqTime.Add(MaxClockSkew + time.Minute)
	ts := reqTime.UnixMilli()
	body := []byte("{}")
	sig := Sign(priv, "GET", "/v1/claws/self", ts, body)

	v := NewVerifierWithClock(func() time.Time { return now })
	err = v.Verify(Envelope{ClawID: id, Method: "GET", Path: "/v1/claws/self", TimestampMs: ts, SignatureB64: sig}, body)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ValidationError))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := DeriveClawID(pub)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := now.UnixMilli()
	sig := Sign(priv, "POST", "/v1/pearls", ts, []byte(`{"a":1}`))

	v := NewVerifierWithClock(func() time.Time { return now })
	err = v.Verify(Envelope{ClawID: id, Method: "POST", Path: "/v1/pearls", TimestampMs: ts, SignatureB64: sig}, []byte(`{"a":2}`))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Forbidden))
}
