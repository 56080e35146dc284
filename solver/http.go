package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPBridge reaches a solver service over HTTP: the descriptor is POSTed as
// a Request and the solution comes back in the Response body. The remote
// service owns queueing and solving; this adapter only correlates and waits.
type HTTPBridge struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

// NewHTTPBridge creates an HTTPBridge for the solver at endpoint. httpClient
// may be nil.
func NewHTTPBridge(endpoint string, httpClient *http.Client, timeout time.Duration) *HTTPBridge {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &HTTPBridge{endpoint: endpoint, client: httpClient, timeout: timeout}
}

// Solve POSTs the descriptor and decodes the token.
func (b *HTTPBridge) Solve(ctx context.Context, d Descriptor) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req := Request{
		ID:   uuid.NewString(),
		Type: "solve_challenge",
		Kind: d.Kind,
		Item: Item{SiteKey: d.SiteKey, SiteURL: d.SiteURL},
		Data: d.Data,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", unresolved("encode request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", unresolved("new request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return "", unresolved("http: %v", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return "", unresolved("http %d", httpResp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return "", unresolved("read body: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", unresolved("decode response: %v", err)
	}
	if resp.Err != "" {
		return "", unresolved("%s", resp.Err)
	}
	if resp.Token == "" {
		return "", unresolved("empty token")
	}
	return resp.Token, nil
}
