package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const maxErrorBody = 4 << 10

// ErrTimeout is wrapped into errors for outbound calls that exceeded the
// per-request timeout
var ErrTimeout = errors.New("timeout")

// ErrTokenRejected means the platform answered a token check with a
// non-success status
var ErrTokenRejected = errors.New("access token rejected")

// HTTPError is returned when an upstream answers with a non-2xx status
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned %s", e.Status)
}

// requester performs bounded JSON GETs against one platform
type requester struct {
	http    *http.Client
	timeout time.Duration
}

func newRequester(httpClient *http.Client, timeout time.Duration) requester {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return requester{http: httpClient, timeout: timeout}
}

// getJSON issues a GET and decodes the body into out. The request URL is
// kept out of returned errors because it can carry the access token.
func (r requester) getJSON(ctx context.Context, rawURL string, header http.Header, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return transportError(ctx, err, r.timeout)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return transportError(ctx, err, r.timeout)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// check performs an authenticated GET. A non-2xx answer is reported as
// ErrTokenRejected; transport failures and timeouts are returned as is.
func (r requester) check(ctx context.Context, rawURL string, header http.Header) error {
	err := r.getJSON(ctx, rawURL, header, nil)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Errorf("%w: %s", ErrTokenRejected, httpErr.Status)
	}
	return err
}

func transportError(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("request %w after %s", ErrTimeout, timeout)
	}
	// *url.Error embeds the request URL; keep only the cause
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("request failed: %w", urlErr.Err)
	}
	return fmt.Errorf("request failed: %w", err)
}

func bearer(token string) http.Header {
	return http.Header{
		"Authorization": []string{"Bearer " + token},
		"Content-Type":  []string{"application/json"},
	}
}
