package workererrors

import (
	"fmt"
	"net/http"
)

// Carries an exit code along with an error so the app can exit correctly
type ExitError struct {
	Err  error
	Code int
}

func (e ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%d", e.Code)
	}

	return fmt.Sprintf("%d: %s", e.Code, e.Err.Error())
}

func (e ExitError) Unwrap() error {
	return e.Err
}

// Wrap an error with an exit code
func ExitErrorWrap(code int, err error) error {
	return ExitError{Code: code, Err: err}
}

// A webhook delivery that did not get a 2xx. StatusCode is 0 when no response arrived.
type DeliveryError struct {
	Err        error
	StatusCode int
}

func (e DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("delivery failed with status %d: %v", e.StatusCode, e.Err)
}

func (e DeliveryError) Unwrap() error {
	return e.Err
}

// 4xx other than 408 and 429 will not succeed on redelivery
func (e DeliveryError) Permanent() bool {
	if e.StatusCode < 400 || e.StatusCode >= 500 {
		return false
	}
	return e.StatusCode != http.StatusRequestTimeout && e.StatusCode != http.StatusTooManyRequests
}
