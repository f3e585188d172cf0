package billing

import "net/http"

// RequestError is the policy-error type: a structured business-logic failure
// carrying an HTTP status. RequestErrors raised by the pipeline propagate
// unchanged to the front-end; every other error is an infrastructure failure
// and is handled fail-open.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// BadRequest builds a 400 policy error.
func BadRequest(message string) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: message}
}

// Forbidden builds a 403 policy error whose body is the denial code.
func Forbidden(code ErrorCode) *RequestError {
	return &RequestError{Status: http.StatusForbidden, Message: string(code)}
}
