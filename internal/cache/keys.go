// Package cache provides a two-tier cache manager: a bounded in-process LRU
// tier in front of a Redis backing tier (with an in-process fallback when
// Redis is unreachable).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const keyPrefix = "kensaku"

// Key derives a stable cache key from an operation name and its parameters.
// Params are canonicalized by re-marshaling through a generic value so that
// map keys are sorted and struct field order does not leak into the key.
func Key(op string, params interface{}) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal cache params: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("canonicalize cache params: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("canonicalize cache params: %w", err)
	}
	sum := sha256.Sum256(append([]byte(op+"\x00"), canonical...))
	return fmt.Sprintf("%s:%s:%s", keyPrefix, op, hex.EncodeToString(sum[:16])), nil
}
