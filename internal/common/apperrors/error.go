package apperrors

// Error is the error type returned across package boundaries. Derived errors
// keep a link to the error they were derived from, so errors.Is matches any
// ancestor as well as every wrapped cause.
type Error interface {
	Error() string
	ErrorAll() string
	New(msg string) Error
	MsgErr(msg string, err ...error) Error
	Msg(msg string) Error
	Prefix(prefix string) Error
	Suffix(suffix string) Error
	Err(err ...error) Error
	Unwrap() []error
	Is(target error) bool
	SetExpandError(expand bool) Error
	SetStatusCode(code int) Error
	StatusCode() int
	SetReason(reason string) Error
	Reason() string
}
