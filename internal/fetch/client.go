// Package fetch provides the HTTP client used to retrieve raw pool records
// from the upstream yields aggregator.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/yourorg/solana-yield-optimizer/internal/model"
)

// Client defines the capability of fetching raw pool records from an
// upstream source. The collector depends on this interface, not on a
// concrete HTTP client, so tests can inject stubs.
type Client interface {
	// Fetch retrieves the full raw pool dataset or fails
	Fetch(ctx context.Context) ([]model.Pool, error)
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}
