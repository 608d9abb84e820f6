package error

import "net/http"

// RateLimitError is surfaced when the upstream keeps answering 429 after all
// allowed retries.
type RateLimitError string

func (err RateLimitError) Error() string {
	return string(err)
}

func (err RateLimitError) ErrCode() string {
	return "RATE_LIMITED"
}

func (err RateLimitError) StatusCode() int {
	return http.StatusTooManyRequests
}
