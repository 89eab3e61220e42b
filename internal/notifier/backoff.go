package notifier

import "time"

// Backoff is a capped-exponential delay policy for bus reconnect and publish
// retries.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// DefaultBackoff returns the relay's standard policy: 250ms doubling up to 30s.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 250 * time.Millisecond,
		Max:     30 * time.Second,
		Factor:  2,
	}
}

// Delay returns the wait before retry attempt n (0-based). Attempt 0 waits
// the initial delay; the delay grows by the factor per attempt and never
// exceeds the cap.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.Initial)
	for i := 0; i < attempt; i++ {
		d *= b.Factor
		if time.Duration(d) >= b.Max {
			return b.Max
		}
	}
	if time.Duration(d) > b.Max {
		return b.Max
	}
	return time.Duration(d)
}
