package ratelimit

import "github.com/quotaguard/rls-gateway/domain"

// upstreamErr wraps a counter-store communication or script-execution
// failure as a fatal error. Per the failure semantics in the external
// interface contract, the engine never silently allows or blocks on these.
func upstreamErr(msg string, cause error) *domain.Error {
	return domain.Wrap(domain.UpstreamUnavailable, msg, cause)
}
