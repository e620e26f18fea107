package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrInvalidResponse = errors.New("invalid response")
)

// StatusError is returned when the server answered with an unexpected status code.
type StatusError struct {
	Code    int
	Message string
}

func newStatusError(response *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
	return &StatusError{
		Code:    response.StatusCode,
		Message: strings.TrimSpace(string(body)),
	}
}

func (s *StatusError) Error() string {
	if s.Message == "" {
		return fmt.Sprintf("server returned status %d", s.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", s.Code, s.Message)
}

func (s *StatusError) Unauthorized() bool {
	return s.Code == http.StatusUnauthorized || s.Code == http.StatusForbidden
}
