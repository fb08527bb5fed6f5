package ors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"manifest-route-service/internal/domain"
	"net"
	"net/http"
	"strings"
	"time"
)

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

func (c *Client) newRequest(
	ctx context.Context,
	method string,
	url string,
	body io.Reader,
	cred domain.Credential,
) (*http.Request, error) {
	if strings.TrimSpace(cred.Key) == "" {
		return nil, domain.ErrNoCredential
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", cred.Key)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry retries transient failures (network errors, 429 and 5xx
// responses) with exponential backoff, up to the configured attempt count.
// Each attempt, first or retried, goes through pace.
// Final failures surface as *domain.UpstreamError tagged with op.
func (c *Client) doWithRetry(
	ctx context.Context,
	op string,
	pace pacer,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	backoff := c.backoff

	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &domain.UpstreamError{Op: op, Err: err}
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("%s: make request: %w", op, err)
		}

		var resp *http.Response
		err = pace.Do(ctx, func() error {
			var doErr error
			resp, doErr = c.do(req)
			return doErr
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case http.StatusTooManyRequests, 500, 502, 503, 504:
				retry = true
			}
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == c.maxAttempts {
			break
		}

		c.logger.WarnContext(ctx, "provider call failed, retrying",
			"op", op, "attempt", attempt, "backoff_ms", backoff.Milliseconds(), "err", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &domain.UpstreamError{Op: op, Err: ctx.Err()}
		case <-timer.C:
		}

		backoff *= 2
	}

	var he *httpStatusError
	if errors.As(lastErr, &he) {
		return nil, &domain.UpstreamError{Op: op, StatusCode: he.Code, Body: he.Body}
	}
	return nil, &domain.UpstreamError{Op: op, Err: lastErr}
}

// readBody reads a bounded response body.
func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}
