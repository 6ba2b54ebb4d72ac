package archival

import "time"

// RetryPolicy bounds the attempts to delete a staged file.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration // Fixed wait between attempts
}

// DefaultRetryPolicy tries three times, one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Second}
}
