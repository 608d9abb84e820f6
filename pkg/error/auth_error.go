package error

import "net/http"

// AuthError marks a 401/403 from the upstream API. These are never retried:
// repeating a call the tenant is not authorized for only burns quota.
type AuthError string

func (err AuthError) Error() string {
	return string(err)
}

func (err AuthError) ErrCode() string {
	return "AUTHORIZATION_ERROR"
}

func (err AuthError) StatusCode() int {
	return http.StatusForbidden
}
