package oracle

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// Loopback is an in-process oracle implementing both Gateway and Verifier.
// It records submissions and can synthesize the callback arguments a real
// oracle would deliver, proving them with an HMAC over the correlation id
// and cleartext. Intended for development and tests.
type Loopback struct {
	secret []byte

	mu          sync.Mutex
	submissions map[uint64][]byte
}

// NewLoopback constructs a loopback oracle keyed with secret.
func NewLoopback(secret []byte) *Loopback {
	return &Loopback{
		secret:      append([]byte(nil), secret...),
		submissions: make(map[uint64][]byte),
	}
}

// SubmitForDecryption implements Gateway by recording the submission.
func (l *Loopback) SubmitForDecryption(_ context.Context, correlationID uint64, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submissions[correlationID] = append([]byte(nil), payload...)
	return nil
}

// Submission returns the payload recorded for correlationID.
func (l *Loopback) Submission(correlationID uint64) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	payload, ok := l.submissions[correlationID]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), payload...), true
}

// Answer produces the callback arguments for a recorded submission: the
// submitted payload echoed as cleartext plus a valid proof over it.
func (l *Loopback) Answer(correlationID uint64) (cleartext, proof []byte, ok bool) {
	payload, ok := l.Submission(correlationID)
	if !ok {
		return nil, nil, false
	}
	return payload, l.Prove(correlationID, payload), true
}

// Prove computes the HMAC proof the verifier expects for the pair.
func (l *Loopback) Prove(correlationID uint64, cleartext []byte) []byte {
	mac := hmac.New(sha256.New, l.secret)
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], correlationID)
	mac.Write(id[:])
	mac.Write(cleartext)
	return mac.Sum(nil)
}

// Verify implements Verifier by recomputing the HMAC.
func (l *Loopback) Verify(_ context.Context, correlationID uint64, cleartext, proof []byte) (bool, error) {
	return hmac.Equal(proof, l.Prove(correlationID, cleartext)), nil
}
