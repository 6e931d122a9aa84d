package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/solana-yield-optimizer/internal/config"
	"github.com/yourorg/solana-yield-optimizer/internal/model"
)

// DefiLlamaClient fetches pool records from the DeFiLlama yields API.
type DefiLlamaClient struct {
	baseURL    string
	chain      string
	httpClient *http.Client
}

// NewDefiLlamaClient creates a new DeFiLlama yields API client.
func NewDefiLlamaClient(cfg config.Config) *DefiLlamaClient {
	return &DefiLlamaClient{
		baseURL:    cfg.YieldsURL,
		chain:      strings.ToLower(cfg.Chain),
		httpClient: StandardClient(newRetryClient()),
	}
}

// Fetch retrieves the full pool dataset and keeps only pools on the
// configured chain. The upstream returns every chain in one response, so
// the chain filter is applied here at the edge.
func (c *DefiLlamaClient) Fetch(ctx context.Context) ([]model.Pool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	logrus.Debugf("Fetching pools from %s", c.baseURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching pools: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("yields API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	// Decode records one by one so a single malformed record only costs
	// that record, not the whole batch.
	var response struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	var corrupted int
	pools := make([]model.Pool, 0, len(response.Data))
	for _, raw := range response.Data {
		var p model.Pool
		if err := json.Unmarshal(raw, &p); err != nil {
			corrupted++
			logrus.WithField("error", err.Error()).Debug("Dropping corrupted pool record")
			continue
		}
		if strings.ToLower(p.Chain) == c.chain {
			pools = append(pools, p)
		}
	}
	if corrupted > 0 {
		logrus.Warnf("Dropped %d corrupted pool records", corrupted)
	}

	logrus.WithFields(logrus.Fields{
		"total": len(response.Data),
		"chain": c.chain,
		"kept":  len(pools),
	}).Debug("Fetched upstream pools")
	return pools, nil
}
