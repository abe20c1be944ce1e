package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"devourer/internal/metadata"
	"devourer/internal/reference"
	"devourer/internal/services"
)

// MediaDescriptor names one downloadable media belonging to an item.
type MediaDescriptor struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// Client is the narrow surface the pipeline needs from the content provider.
// Implementations are expected to enforce their own bounded timeouts.
type Client interface {
	FetchMetadata(ctx context.Context, ref reference.Reference) (*metadata.Document, error)
	FetchMediaList(ctx context.Context, ref reference.Reference) ([]MediaDescriptor, error)
}

// HTTPClient talks to a provider API over HTTP.
type HTTPClient struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewHTTPClient constructs a provider client with a bounded request timeout.
func NewHTTPClient(baseURL, authToken string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		client:    &http.Client{Timeout: timeout},
	}
}

// FetchMetadata retrieves the metadata document for a reference.
func (c *HTTPClient) FetchMetadata(ctx context.Context, ref reference.Reference) (*metadata.Document, error) {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, ref.Kind, ref.Code)
	body, err := c.get(ctx, url, ref)
	if err != nil {
		return nil, err
	}
	doc, err := metadata.Decode(body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "provider", "fetch metadata", ref.String(), err)
	}
	doc.Kind = string(ref.Kind)
	doc.Code = ref.Code
	return doc, nil
}

// FetchMediaList retrieves the downloadable media belonging to a reference.
func (c *HTTPClient) FetchMediaList(ctx context.Context, ref reference.Reference) ([]MediaDescriptor, error) {
	url := fmt.Sprintf("%s/%s/%s/media", c.baseURL, ref.Kind, ref.Code)
	body, err := c.get(ctx, url, ref)
	if err != nil {
		return nil, err
	}
	var list []MediaDescriptor
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, services.Wrap(services.ErrTransient, "provider", "fetch media list", ref.String(), err)
	}
	return list, nil
}

func (c *HTTPClient) get(ctx context.Context, url string, ref reference.Reference) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "provider", "build request", ref.String(), err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "provider", "request", ref.String(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "provider", "request", ref.String(), nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, services.Wrap(services.ErrTransient, "provider", "request",
			fmt.Sprintf("%s returned status %d", ref.String(), resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "provider", "read response", ref.String(), err)
	}
	return body, nil
}
