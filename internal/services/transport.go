package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/desertthunder/ptx/internal/shared"
	"golang.org/x/time/rate"
)

// rateLimitedTransport waits on a shared limiter before every outbound request.
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// NewRateLimitedClient returns an [http.Client] allowing at most rps requests per second.
//
// A non-positive rps disables limiting.
func NewRateLimitedClient(rps float64, timeout time.Duration) *http.Client {
	var transport http.RoundTripper = http.DefaultTransport
	if rps > 0 {
		burst := max(1, int(rps))
		transport = &rateLimitedTransport{
			base:    http.DefaultTransport,
			limiter: rate.NewLimiter(rate.Limit(rps), burst),
		}
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// StatusError is a non-2xx response from a catalog API.
type StatusError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s API error: status %d: %s", e.Service, e.StatusCode, e.Message)
}

// Unwrap maps the status code onto the shared sentinels.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return shared.ErrAuthFailed
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// hasStatus reports whether err carries a [StatusError] with code.
func hasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// readStatusError builds a [StatusError] from resp, using the first of the known
// message fields found in a JSON error body.
func readStatusError(service string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	se := &StatusError{Service: service, StatusCode: resp.StatusCode}

	var payload struct {
		Detail    string `json:"detail"`
		UserMsg   string `json:"userMessage"`
		ErrorBody struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.ErrorBody.Message != "":
			se.Message = payload.ErrorBody.Message
		case payload.UserMsg != "":
			se.Message = payload.UserMsg
		case payload.Detail != "":
			se.Message = payload.Detail
		}
	}
	return se
}
