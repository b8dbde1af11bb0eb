// Package oracle defines the outbound gateway to the decryption oracle and
// the proof verifier applied to its callbacks.
package oracle

import "context"

// Gateway submits reconstruction requests to the external oracle. Submissions
// are keyed by the correlation id issued for the request; the oracle echoes
// that id back in its callback.
type Gateway interface {
	SubmitForDecryption(ctx context.Context, correlationID uint64, payload []byte) error
}

// Verifier checks the authenticity proof attached to an oracle callback.
// A false return with nil error means the proof is well formed but wrong.
type Verifier interface {
	Verify(ctx context.Context, correlationID uint64, cleartext, proof []byte) (bool, error)
}

// Discard is a Gateway that accepts every submission and drops it. Used when
// no oracle transport is configured.
type Discard struct{}

// SubmitForDecryption implements Gateway.
func (Discard) SubmitForDecryption(context.Context, uint64, []byte) error { return nil }

// DenyAll is a Verifier that rejects every proof. It is the safe default:
// callbacks cannot complete records until a real verifier is configured.
type DenyAll struct{}

// Verify implements Verifier.
func (DenyAll) Verify(context.Context, uint64, []byte, []byte) (bool, error) { return false, nil }
