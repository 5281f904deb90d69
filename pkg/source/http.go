package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 1 << 20

// HTTPGateway fetches batches from an upstream JSON feed at
// GET <base>/<category path>.
type HTTPGateway struct {
	base   string
	token  string
	client *http.Client
}

var _ Gateway = (*HTTPGateway)(nil)

type numbersResponse struct {
	Numbers []int64 `json:"numbers"`
}

// NewHTTPGateway validates base and returns a gateway using client, or
// http.DefaultClient when client is nil. The deadline is carried by the
// request context, not the client.
func NewHTTPGateway(base, token string, client *http.Client) (*HTTPGateway, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url: unsupported scheme %q", u.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		client: client,
	}, nil
}

func (g *HTTPGateway) FetchBatch(ctx context.Context, c Category) ([]int64, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrTransport, ErrUnknownCategory, c)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+"/"+c.Path(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, classifyCtxErr(ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrTransport, resp.StatusCode, c.Path())
	}

	var body numbersResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, classifyCtxErr(ctxErr)
		}
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty response body", ErrTransport)
		}
		return nil, fmt.Errorf("%w: decode response: %w", ErrTransport, err)
	}
	if body.Numbers == nil {
		return []int64{}, nil
	}
	return body.Numbers, nil
}
