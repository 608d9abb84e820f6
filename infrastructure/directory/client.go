package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/AzielCF/az-audit/pkg/httpretry"
	"github.com/sirupsen/logrus"
)

// Client is the thin transport to the remote directory API. It only knows
// how to GET JSON and follow pagination links; retry/backoff lives in the
// wrapped httpretry client and caching lives above it.
type Client struct {
	baseURL string
	token   string
	retry   *httpretry.Client
}

func NewClient(baseURL, token string, retry *httpretry.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		retry:   retry,
	}
}

type listEnvelope struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// Get fetches a single JSON document from path.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.getURL(ctx, c.buildURL(path, query))
}

// GetList fetches a collection endpoint, following pagination links until
// the remote reports no more pages.
func (c *Client) GetList(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	next := c.buildURL(path, query)

	var items []json.RawMessage
	for page := 0; next != ""; page++ {
		body, err := c.getURL(ctx, next)
		if err != nil {
			return nil, err
		}

		var envelope listEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode page %d of %s: %w", page, path, err)
		}
		items = append(items, envelope.Value...)
		next = envelope.NextLink
	}

	logrus.Debugf("[DIRECTORY] Fetched %d items from %s", len(items), path)
	return items, nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) getURL(ctx context.Context, rawURL string) (json.RawMessage, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.retry.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("directory API returned %d for %s: %s", resp.StatusCode, req.URL.Path, string(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory response: %w", err)
	}
	return body, nil
}
