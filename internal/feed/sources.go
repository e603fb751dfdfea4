package feed

import (
	"context"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"CapIot.powerfeed/internal/models"
)

// HTTPSource fetches the YAML feed over HTTP.
type HTTPSource struct {
	client *resty.Client
	url    string
}

// NewHTTPSource creates a source for url. A zero timeout leaves the request
// bounded only by the caller's context.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	client := resty.New().
		SetHeader("Accept", "application/yaml, text/yaml, text/plain, */*")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPSource{client: client, url: url}
}

// Fetch downloads and parses the feed. Only 2xx responses are accepted.
func (s *HTTPSource) Fetch(ctx context.Context) (*Document, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.url)
	if err != nil {
		return nil, &models.FetchError{Source: s.url, Err: err}
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, &models.FetchError{Source: s.url, StatusCode: code}
	}
	return Parse(resp.Body())
}

// FileSource reads the YAML feed from a local file.
type FileSource struct {
	Path string
}

// Fetch reads and parses the file.
func (s FileSource) Fetch(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.FetchError{Source: s.Path, Err: err}
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, &models.FetchError{Source: s.Path, Err: err}
	}
	return Parse(data)
}
