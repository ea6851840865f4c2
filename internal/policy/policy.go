// Package policy decides whether a cached entry may be reused for a request.
package policy

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultThreshold is the minimum cosine similarity for reuse.
	DefaultThreshold = 0.82

	// KeyModelID identifies the generation model that produced a response.
	KeyModelID = "model_id"
	// KeySystemHash identifies the system prompt / configuration a response was produced under.
	KeySystemHash = "system_hash"
)

// ErrInvalidConfig is returned for thresholds outside [0, 1] or an empty required-key set.
var ErrInvalidConfig = errors.New("invalid cache policy")

// DefaultRequiredKeys returns the metadata keys that must match for reuse.
func DefaultRequiredKeys() []string {
	return []string{KeyModelID, KeySystemHash}
}

// Policy holds the similarity threshold and the metadata keys that gate reuse.
// It is immutable and safe for concurrent use.
type Policy struct {
	threshold    float64
	requiredKeys []string
}

// New returns a policy with the default required keys.
func New(threshold float64) (*Policy, error) {
	return NewWithKeys(threshold, DefaultRequiredKeys())
}

// NewWithKeys returns a policy gated on the given metadata keys.
func NewWithKeys(threshold float64, keys []string) (*Policy, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v outside [0, 1]", ErrInvalidConfig, threshold)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: required key set is empty", ErrInvalidConfig)
	}
	for _, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("%w: empty required key", ErrInvalidConfig)
		}
	}
	return &Policy{
		threshold:    threshold,
		requiredKeys: append([]string(nil), keys...),
	}, nil
}

// Threshold returns the configured similarity threshold.
func (p *Policy) Threshold() float64 {
	return p.threshold
}

// RequiredKeys returns a copy of the keys checked by IsCompatible.
func (p *Policy) RequiredKeys() []string {
	return append([]string(nil), p.requiredKeys...)
}

// PassesThreshold reports whether similarity >= threshold.
func (p *Policy) PassesThreshold(similarity float64) bool {
	return similarity >= p.threshold
}

// IsCompatible reports whether every required key agrees between the request and
// the stored entry. A key absent on both sides agrees; absent on one side does not.
func (p *Policy) IsCompatible(request, stored map[string]string) bool {
	for _, k := range p.requiredKeys {
		rv, rok := request[k]
		sv, sok := stored[k]
		if rok != sok {
			return false
		}
		if rok && rv != sv {
			return false
		}
	}
	return true
}
