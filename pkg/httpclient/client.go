package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient covers the two request shapes provider APIs use: JSON bodies
// and form-encoded posts.
type HTTPClient interface {
	Post(ctx context.Context, url string, body io.Reader, headers map[string]string) (*http.Response, error)
	PostForm(ctx context.Context, url string, form url.Values, headers map[string]string) (*http.Response, error)
}

type httpClient struct {
	client *http.Client
}

func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &httpClient{client: &http.Client{Timeout: timeout}}
}

func (c *httpClient) Post(ctx context.Context, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	return c.send(ctx, url, body, headers)
}

func (c *httpClient) PostForm(ctx context.Context, url string, form url.Values, headers map[string]string) (*http.Response, error) {
	merged := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range headers {
		merged[k] = v
	}

	return c.send(ctx, url, strings.NewReader(form.Encode()), merged)
}

func (c *httpClient) send(ctx context.Context, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return c.client.Do(req)
}
