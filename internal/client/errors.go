package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"breaksphere/internal/models"
)

var (
	// ErrNotSignedIn is returned by mutations attempted without a session.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrPageInFlight is returned when a page for the same query is still loading.
	ErrPageInFlight = errors.New("page request already in flight")
	// ErrEndOfFeed is returned when the last page has already been loaded.
	ErrEndOfFeed = errors.New("end of feed")
	// ErrPageSuperseded is returned when Refresh discarded the pages a
	// response was fetched for. The response is dropped.
	ErrPageSuperseded = errors.New("page superseded by refresh")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func decodeAPIError(status int, body []byte) error {
	var resp models.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error == "" {
		return &APIError{Status: status, Message: http.StatusText(status)}
	}
	return &APIError{Status: status, Code: resp.Code, Message: resp.Error}
}
