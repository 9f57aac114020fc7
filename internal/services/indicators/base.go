package indicators

import (
	"context"
	"fmt"
	"strings"
	"time"

	xhttp "TradeCore/pkg/http"

	"github.com/tidwall/gjson"
)

// HTTPServiceBase is the shared client for the remote indicator and brain services.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPServiceBase builds a rate-limited, retrying client rooted at baseURL.
func NewHTTPServiceBase(baseURL string, timeout time.Duration, rps float64) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPServiceBase{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithRateLimit(rps, 5),
			xhttp.WithRetry(2*timeout),
		),
	}
}

// NewHTTPServiceBaseWithClient is used by tests to point at an httptest server.
func NewHTTPServiceBaseWithClient(baseURL string, client *xhttp.Client) *HTTPServiceBase {
	return &HTTPServiceBase{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// PostJSON posts payload to path and decodes the JSON response into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("http service client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     b.baseURL + path,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostRaw posts payload and returns the parsed body. Responses wrapped in a
// top-level "data" object are unwrapped.
func (b *HTTPServiceBase) PostRaw(ctx context.Context, path string, payload interface{}) (gjson.Result, error) {
	var raw []byte
	if err := b.PostJSON(ctx, path, payload, &raw); err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("post %s: invalid json response", path)
	}
	res := gjson.ParseBytes(raw)
	if data := res.Get("data"); data.Exists() && data.IsObject() {
		return data, nil
	}
	return res, nil
}
