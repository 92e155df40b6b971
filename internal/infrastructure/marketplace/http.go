package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/reseller/crosslist/internal/domain/listing"
)

// maxResponseSize is the maximum allowed response size from a platform API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// platformMessage extracts a human-readable error message from a response body
type platformMessage func(body []byte) (code, message string)

// apiClient is the shared request path of the API adapters: rate limiting,
// resty execution and mapping of HTTP outcomes onto the error taxonomy.
type apiClient struct {
	platform listing.Platform
	limiter  *rate.Limiter
	message  platformMessage
}

func newLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// do waits for a rate-limit token, runs the request and classifies the outcome
func (c *apiClient) do(ctx context.Context, op string, req *resty.Request, method, path string) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &listing.TransientAdapterError{Platform: c.platform, Op: op, Err: fmt.Errorf("%w: %v", listing.ErrPlatformRateLimited, err)}
	}

	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		return nil, c.classifyTransportError(op, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return resp, c.classifyStatus(op, resp)
	}
	return resp, nil
}

func (c *apiClient) classifyTransportError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			return &listing.TransientAdapterError{Platform: c.platform, Op: op, Err: fmt.Errorf("%w: token endpoint HTTP %d", listing.ErrPlatformUnavailable, status)}
		}
		msg := retrieveErr.ErrorDescription
		if msg == "" {
			msg = retrieveErr.ErrorCode
		}
		return &listing.PermanentAdapterError{
			Platform:    c.platform,
			Op:          op,
			Code:        retrieveErr.ErrorCode,
			Message:     msg,
			Remediation: "reconnect the " + c.platform.DisplayName() + " account and update its credentials",
			Err:         listing.ErrPlatformAuthFailed,
		}
	}
	return &listing.TransientAdapterError{Platform: c.platform, Op: op, Err: fmt.Errorf("%w: %v", listing.ErrPlatformUnavailable, err)}
}

func (c *apiClient) classifyStatus(op string, resp *resty.Response) error {
	status := resp.StatusCode()
	body := resp.Body()
	if len(body) > maxResponseSize {
		body = body[:maxResponseSize]
	}
	code, msg := "", ""
	if c.message != nil {
		code, msg = c.message(body)
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &listing.TransientAdapterError{
			Platform:   c.platform,
			Op:         op,
			RetryAfter: retryAfter(resp.Header().Get("Retry-After")),
			Err:        fmt.Errorf("%w: %s", listing.ErrPlatformRateLimited, msg),
		}
	case status >= http.StatusInternalServerError:
		return &listing.TransientAdapterError{Platform: c.platform, Op: op, Err: fmt.Errorf("%w: HTTP %d: %s", listing.ErrPlatformUnavailable, status, msg)}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &listing.PermanentAdapterError{
			Platform:    c.platform,
			Op:          op,
			Code:        code,
			Message:     msg,
			Remediation: "reconnect the " + c.platform.DisplayName() + " account and update its credentials",
			Err:         listing.ErrPlatformAuthFailed,
		}
	default:
		return &listing.PermanentAdapterError{
			Platform:    c.platform,
			Op:          op,
			Code:        code,
			Message:     msg,
			Remediation: "correct the listing according to the platform message and publish again",
			Err:         fmt.Errorf("%w: HTTP %d", listing.ErrPlatformRejected, status),
		}
	}
}

// retryAfter parses a Retry-After header given in seconds
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
