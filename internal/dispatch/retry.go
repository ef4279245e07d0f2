package dispatch

import "time"

// retryBase is the backoff unit. The delay for the nth retry is 5^n minutes:
// 5m, 25m, 125m. n is the post-increment retry count.
const retryBase = 5 * time.Minute

// NextRetry decides whether a failed send gets another attempt. retryCount is
// the number of retries already consumed. When the message may be retried it
// returns the time of the next attempt and true; otherwise the caller marks
// the record FAILED.
func NextRetry(now time.Time, retryCount, maxRetries int) (time.Time, bool) {
	if retryCount >= maxRetries {
		return time.Time{}, false
	}
	return now.Add(RetryDelay(retryCount + 1)), true
}

// RetryDelay returns the backoff for the nth retry.
func RetryDelay(n int) time.Duration {
	delay := retryBase
	for i := 1; i < n; i++ {
		delay *= 5
	}
	return delay
}
