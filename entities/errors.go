package entities

import "errors"

// PermanentError marks a failure that will never succeed on redelivery:
// missing payment, fraud rejection, malformed payload. The message router
// sends these straight to the dead-letter topic without retrying.
type PermanentError struct {
	err error
}

func NewPermanentError(err error) PermanentError {
	return PermanentError{err: err}
}

func (e PermanentError) Error() string {
	return e.err.Error()
}

func (e PermanentError) Unwrap() error {
	return e.err
}

func (e PermanentError) IsPermanent() bool {
	return true
}

func IsPermanent(err error) bool {
	var permanent interface{ IsPermanent() bool }
	return errors.As(err, &permanent) && permanent.IsPermanent()
}
