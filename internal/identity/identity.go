// Package identity derives Claw identifiers from Ed25519 public keys and
// verifies the signed request envelope described in spec §6.1, in place of
// the teacher's SPIFFE/SPIRE workload verification (dropped, see DESIGN.md).
package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

// MaxClockSkew bounds how far a request timestamp may drift from the
// verifier's clock before it is rejected as stale or from the future.
const MaxClockSkew = 5 * time.Minute

// DeriveClawID computes the deterministic id for a Claw from its Ed25519
// public key: the hex encoding of the raw key bytes. Two distinct keys can
// never collide, and the same key always derives the same id.
func DeriveClawID(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", errs.New(errs.ValidationError, "public key must be 32 bytes")
	}
	return hex.EncodeToString(pub), nil
}

// Envelope is the signed fields of an inbound request (spec §6.1): method,
// path, a millisecond timestamp, and a base64 signature over the canonical
// string built from the first three plus the body.
type Envelope struct {
	ClawID       string
	Method       string
	Path         string
	TimestampMs  int64
	SignatureB64 string
}

// Verifier checks request envelopes against a known Claw public key.
type Verifier struct {
	now func() time.Time
}

// NewVerifier returns a Verifier using the real wall clock.
func NewVerifier() *Verifier {
	return &Verifier{now: time.Now}
}

// NewVerifierWithClock returns a Verifier using the given time source, for
// deterministic tests.
func NewVerifierWithClock(now func() time.Time) *Verifier {
	return &Verifier{now: now}
}

// CanonicalMessage builds the exact byte string the signature covers:
// "METHOD\nPATH\nTIMESTAMP\n" followed by the raw body.
func CanonicalMessage(method, path string, timestampMs int64, body []byte) []byte {
	var sb strings.Builder
	sb.WriteString(strings.ToUpper(method))
	sb.WriteByte('\n')
	sb.WriteString(path)
	sb.WriteByte('\n')
	sb.WriteString(strconv.FormatInt(timestampMs, 10))
	sb.WriteByte('\n')
	msg := make([]byte, 0, sb.Len()+len(body))
	msg = append(msg, []byte(sb.String())...)
	msg = append(msg, body...)
	return msg
}

// Verify checks that env.SignatureB64 is a valid Ed25519 signature, by the
// key owning env.ClawID, over CanonicalMessage(env.Method, env.Path,
// env.TimestampMs, body), and that the timestamp is within MaxClockSkew of
// now.
func (v *Verifier) Verify(env Envelope, body []byte) error {
	pub, err := PublicKeyFromClawID(env.ClawID)
	if err != nil {
		return err
	}

	sig, err := base64.StdEncoding.DecodeString(env.SignatureB64)
	if err != nil {
		return errs.Wrap(errs.ValidationError, "malformed signature encoding", err)
	}

	now := v.now().UTC()
	reqTime := time.UnixMilli(env.TimestampMs).UTC()
	skew := now.Sub(reqTime)
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return errs.New(errs.ValidationError, "request timestamp outside allowed clock skew")
	}

	msg := CanonicalMessage(env.Method, env.Path, env.TimestampMs, body)
	if !ed25519.Verify(pub, msg, sig) {
		return errs.New(errs.Forbidden, "signature verification failed")
	}
	return nil
}

// PublicKeyFromClawID recovers the raw Ed25519 public key encoded in a Claw
// id produced by DeriveClawID.
func PublicKeyFromClawID(clawID string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(clawID)
	if err != nil {
		return nil, errs.Wrap(errs.ValidationError, "malformed claw id", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errs.New(errs.ValidationError, fmt.Sprintf("claw id decodes to %d bytes, want %d", len(raw), ed25519.PublicKeySize))
	}
	return ed25519.PublicKey(raw), nil
}

// Sign is a test/client helper that signs method/path/timestamp/body with
// priv and returns the base64 signature Verify expects.
func Sign(priv ed25519.PrivateKey, method, path string, timestampMs int64, body []byte) string {
	msg := CanonicalMessage(method, path, timestampMs, body)
	sig := ed25519.Sign(priv, msg)
	return base64.StdEncoding.EncodeToString(sig)
}
