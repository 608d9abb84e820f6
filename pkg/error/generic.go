package error

// GenericError is implemented by every typed error in this package so the
// REST recovery middleware can translate panics into proper responses.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
