package parkapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// RejectedError carries a server-side rejection. Message is the server's
// message verbatim; the client never substitutes its own wording.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request rejected with status %d", e.StatusCode)
}

// NetworkError is a transport-level failure, distinct from a rejection the
// server actually issued.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func newRejectedError(resp *http.Response) *RejectedError {
	rejected := &RejectedError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return rejected
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		rejected.Message = payload.Message
	}
	return rejected
}
