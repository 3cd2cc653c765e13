package errutil

import "fmt"

// BaseError is the domain error shape shared by every service. It keeps a
// machine-readable code next to a human message and optionally wraps the
// underlying cause.
type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

func (e BaseError) JSON() interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.messageWithErr(),
		},
	}
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.messageWithErr())
}

func (e BaseError) messageWithErr() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func New(code CoreStatus, message string, err error) error {
	return BaseError{Code: code, Message: message, Err: err}
}

func NotFound(msg string, err error) error {
	return New(StatusNotFound, msg, err)
}

func Conflict(msg string, err error) error {
	return New(StatusConflict, msg, err)
}

func BadRequest(msg string, err error) error {
	return New(StatusBadRequest, msg, err)
}

func UnprocessableEntity(msg string, err error) error {
	return New(StatusUnprocessableEntity, msg, err)
}

func Internal(msg string, err error) error {
	return New(StatusInternal, msg, err)
}

func Timeout(msg string, err error) error {
	return New(StatusTimeout, msg, err)
}

func BadGateway(msg string, err error) error {
	return New(StatusBadGateway, msg, err)
}
