// Package llama reads lending and borrowing history from the DeFiLlama
// yields API.
package llama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bft-labs/stableopt/internal/ports"
)

// DefaultBaseURL is the public DeFiLlama yields endpoint.
const DefaultBaseURL = "https://yields.llama.fi"

const chartEndpoint = "/chartLendBorrow/"

// Point is one daily observation of a pool. Rates are in percent.
type Point struct {
	Timestamp      time.Time `json:"timestamp"`
	APYBase        *float64  `json:"apyBase"`
	APYBaseBorrow  *float64  `json:"apyBaseBorrow"`
	TotalSupplyUSD *float64  `json:"totalSupplyUsd"`
	TotalBorrowUSD *float64  `json:"totalBorrowUsd"`
}

// Client is a DeFiLlama yields API client.
type Client struct {
	baseURL string
	http    ports.HTTPClient
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL and a
// nil httpClient a client with a 30s timeout.
func NewClient(baseURL string, httpClient ports.HTTPClient) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// PoolHistory returns the full lend/borrow history of a pool, oldest first.
func (c *Client) PoolHistory(ctx context.Context, poolID string) ([]Point, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+chartEndpoint+url.PathEscape(poolID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", poolID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pool %s: server returned %d: %s", poolID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Data []Point `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("pool %s: decode response: %w", poolID, err)
	}

	sort.SliceStable(payload.Data, func(i, j int) bool {
		return payload.Data[i].Timestamp.Before(payload.Data[j].Timestamp)
	})
	return payload.Data, nil
}
