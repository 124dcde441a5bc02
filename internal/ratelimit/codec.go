package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
)

// stateVersion is the only accepted BucketState encoding. Bump it together
// with token_bucket.lua, which reads and writes the same shape.
const stateVersion = 1

// ErrMalformedState reports a stored value that is not a valid versioned
// bucket encoding. Callers treat it as "key absent" and let the bucket
// reinitialize rather than propagating a decode failure.
var ErrMalformedState = errors.New("ratelimit: malformed bucket state")

// BucketState is the persisted per-key token bucket: the current balance and
// the timestamp of the last refill. Redis owns the authoritative copy; the
// client never caches token counts across calls.
type BucketState struct {
	Version          int     `json:"v"`
	Tokens           float64 `json:"tokens"`
	LastRefillMillis int64   `json:"last_refill_ms"`
}

// EncodeState serializes st into the store's value representation.
func EncodeState(st BucketState) (string, error) {
	st.Version = stateVersion

	raw, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("encode bucket state: %w", err)
	}

	return string(raw), nil
}

// DecodeState parses a stored value. Anything that is not a well-formed
// version-1 encoding with sane field values returns ErrMalformedState.
func DecodeState(raw string) (BucketState, error) {
	var st BucketState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return BucketState{}, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}

	if st.Version != stateVersion || st.Tokens < 0 || st.LastRefillMillis <= 0 {
		return BucketState{}, ErrMalformedState
	}

	return st, nil
}
