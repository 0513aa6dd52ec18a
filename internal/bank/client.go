package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dispensa/internal/core"
)

const defaultTimeout = 15 * time.Second

// Client talks to the aggregator's HTTP API. The OAuth/link handshake is
// handled elsewhere; this client only exchanges an access token for the
// transaction feed of a date window.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Fetcher = (*Client)(nil)

// NewClient creates a Client for the given aggregator base URL. A zero
// timeout falls back to 15s.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("missing bank aggregator base URL")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type transactionsResponse struct {
	Transactions []Record `json:"transactions"`
}

// FetchTransactions implements Fetcher.
func (c *Client) FetchTransactions(ctx context.Context, accessToken string, from, to core.Date) ([]Record, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, &FetchError{Op: "fetch", Err: errors.New("missing access token")}
	}

	q := url.Values{}
	q.Set("start_date", from.String())
	q.Set("end_date", to.String())
	endpoint := c.baseURL + "/transactions?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Op: "fetch", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			Op:     "fetch",
			Status: resp.StatusCode,
			Err:    fmt.Errorf("aggregator returned %s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var payload transactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &FetchError{Op: "decode", Err: err}
	}

	slog.InfoContext(ctx, "Fetched bank transactions",
		"from", from.String(),
		"to", to.String(),
		"count", len(payload.Transactions))

	return payload.Transactions, nil
}
