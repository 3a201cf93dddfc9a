package centrifuge

import (
	"math/rand"
	"time"
)

// maxReconnectBackoffExponent caps attempts at 2^16 in the backoff
// formula so the exponent never overflows and growth plateaus at
// maxReconnectDelay well before attempts gets large.
const maxReconnectBackoffExponent = 16

// backoffDelay computes a full-jitter exponential backoff delay:
// min(minDelay*2^min(attempts,maxExp), maxDelay) then a uniform draw
// from [0, cap).
func backoffDelay(attempts uint32, minDelay, maxDelay time.Duration) time.Duration {
	exp := attempts
	if exp > maxReconnectBackoffExponent {
		exp = maxReconnectBackoffExponent
	}
	capDelay := minDelay << exp
	if capDelay <= 0 || capDelay > maxDelay {
		capDelay = maxDelay
	}
	if capDelay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(capDelay)))
}
