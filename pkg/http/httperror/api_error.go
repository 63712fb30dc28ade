package httperror

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
)

// maxBody bounds how much of an error response is kept.
const maxBody = 512

// APIError is returned when an upstream API answers with a non-2xx
// status. Retrieve it with errors.As or errors.Cause to decide how to
// treat the failure.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

// FromResponse builds an APIError from resp, consuming a bounded
// prefix of its body. The caller still closes the body.
func FromResponse(resp *http.Response) *APIError {
	body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

func (err *APIError) Error() string {
	if err.Body == "" {
		return err.Status
	}
	return fmt.Sprintf("%s (%s)", err.Status, err.Body)
}

// Does this error mean the upstream is unavailable?
func (err *APIError) IsUnavailable() bool {
	switch err.StatusCode {
	case 502, 503, 504:
		return true
	}
	return false
}

// Does this error mean the thing asked for does not exist upstream?
func (err *APIError) IsMissing() bool {
	return err.StatusCode == http.StatusNotFound
}

// Are we being throttled?
func (err *APIError) IsThrottled() bool {
	return err.StatusCode == http.StatusTooManyRequests
}
