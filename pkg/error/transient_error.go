package error

import "net/http"

// TransientError is surfaced when network failures or upstream 5xx persist
// past the retry budget.
type TransientError string

func (err TransientError) Error() string {
	return string(err)
}

func (err TransientError) ErrCode() string {
	return "UPSTREAM_UNAVAILABLE"
}

func (err TransientError) StatusCode() int {
	return http.StatusBadGateway
}
