// Package keyderiver computes the shared-counter-store keys for each rate
// limit algorithm. Stability of these shapes matters across rolling
// deployments, so they are produced verbatim from the table in the
// external interface contract and never reformatted.
package keyderiver

import (
	"fmt"

	"github.com/quotaguard/rls-gateway/domain"
)

// WindowEpoch computes the floor of now (in seconds) to the nearest
// windowSeconds boundary, as used by fixed_window keys.
func WindowEpoch(nowSec int64, windowSeconds int) int64 {
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	w := int64(windowSeconds)
	return (nowSec / w) * w
}

// Derive produces the shared-store key for the given algorithm. windowEpoch
// is only consulted for fixed_window; callers pass 0 for the others.
func Derive(alg domain.Algorithm, tenant, subject, resource string, windowEpoch int64) string {
	switch alg {
	case domain.TokenBucket:
		return fmt.Sprintf("lf:tb:%s:%s:%s", tenant, subject, resource)
	case domain.FixedWindow:
		return fmt.Sprintf("lf:fw:%s:%s:%s:%d", tenant, subject, resource, windowEpoch)
	case domain.SlidingWindow:
		return fmt.Sprintf("lf:sw:%s:%s:%s", tenant, subject, resource)
	case domain.Concurrency:
		return fmt.Sprintf("lf:cc:%s:%s:%s", tenant, subject, resource)
	default:
		return fmt.Sprintf("lf:tb:%s:%s:%s", tenant, subject, resource)
	}
}
