package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	xhttp "StockCast/pkg/http"
)

// HTTPServiceBase centralizes client construction and JSON POSTs for model
// services reached over HTTP.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
	backoff time.Duration
}

// NewHTTPServiceBase builds a client for baseURL. A non-positive timeout falls
// back to 10s.
func NewHTTPServiceBase(baseURL string, timeout time.Duration) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPServiceBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		backoff: 100 * time.Millisecond,
	}
}

func (b *HTTPServiceBase) BaseURL() string { return b.baseURL }

// PostJSON posts payload to path under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b == nil || b.client == nil || b.baseURL == "" {
		return fmt.Errorf("model service client not initialized")
	}
	if err := b.client.PostJSON(ctx, b.baseURL+path, payload, dest); err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry makes up to attempts calls with a linear backoff between them.
// A non-temporary status such as 400 or 404 is returned without retrying.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
	if attempts <= 1 {
		return b.PostJSON(ctx, path, payload, dest)
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = b.PostJSON(ctx, path, payload, dest); err == nil {
			return nil
		}
		var se *xhttp.StatusError
		if i == attempts || (errors.As(err, &se) && !se.Temporary()) {
			break
		}
		select {
		case <-time.After(time.Duration(i) * b.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
