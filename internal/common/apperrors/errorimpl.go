package apperrors

import "errors"

// appError implements the apperrors.Error interface
type appError struct {
	msg           string
	base          Error
	wrappedErrors []error
	statuscode    int
	reason        string
	expandError   bool
	prefix        string
	suffix        string
}

func (e *appError) Error() string {
	msg := e.msg
	if e.prefix != "" {
		msg = e.prefix + ": " + msg
	}
	if e.suffix != "" {
		msg += ": " + e.suffix
	}
	return msg
}

func (e *appError) ErrorAll() string {
	if !e.expandError {
		return e.Error()
	}
	var msg string
	for _, err := range e.wrappedErrors {
		msg += err.Error() + ";"
	}
	if len(msg) > 0 {
		msg = e.Error() + ": " + msg[:len(msg)-1]
	} else {
		msg = e.Error()
	}
	return msg
}

func (e *appError) Unwrap() []error {
	return e.wrappedErrors
}

// derive returns a child of e that inherits its attributes. Sentinels are
// package level values, so every mutator works on a child.
func (e *appError) derive() *appError {
	return &appError{
		msg:           e.msg,
		base:          e,
		wrappedErrors: append([]error(nil), e.wrappedErrors...),
		statuscode:    e.statuscode,
		reason:        e.reason,
		expandError:   e.expandError,
		prefix:        e.prefix,
		suffix:        e.suffix,
	}
}

func (e *appError) New(msg string) Error {
	c := e.derive()
	c.msg = msg
	c.prefix, c.suffix = "", ""
	return c
}

func (e *appError) Msg(msg string) Error {
	c := e.derive()
	c.msg = msg
	return c
}

func (e *appError) Prefix(prefix string) Error {
	c := e.derive()
	c.prefix = prefix
	return c
}

func (e *appError) Suffix(suffix string) Error {
	c := e.derive()
	c.suffix = suffix
	return c
}

func (e *appError) MsgErr(msg string, err ...error) Error {
	c := e.derive()
	c.msg = msg
	c.wrappedErrors = append(c.wrappedErrors, err...)
	return c
}

func (e *appError) Err(err ...error) Error {
	c := e.derive()
	c.wrappedErrors = append(c.wrappedErrors, err...)
	return c
}

func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*appError); ok && e == t {
		return true
	}
	if e.base != nil && (e.base == target || e.base.Is(target)) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (e *appError) SetExpandError(expand bool) Error {
	c := e.derive()
	c.expandError = expand
	return c
}

func (e *appError) SetStatusCode(code int) Error {
	c := e.derive()
	c.statuscode = code
	return c
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

func (e *appError) SetReason(reason string) Error {
	c := e.derive()
	c.reason = reason
	return c
}

func (e *appError) Reason() string {
	return e.reason
}

func New(msg string) Error {
	return &appError{
		msg: msg,
	}
}

// StatusCodeOf returns the status code carried by err or one of its
// ancestors, and 0 when err is not an Error.
func StatusCodeOf(err error) int {
	var appErr Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return 0
}
