package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/solana-yield-optimizer/internal/config"
)

func poolServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestFetch_FiltersByChain(t *testing.T) {
	ts := poolServer(t, `{"data":[
		{"project":"raydium","pool":"p1","symbol":"SOL-USDC","chain":"Solana","apy":15.0,"tvlUsd":1000000},
		{"project":"uniswap","pool":"p2","symbol":"ETH-USDC","chain":"Ethereum","apy":8.0,"tvlUsd":9000000}
	]}`)

	client := NewDefiLlamaClient(config.Config{YieldsURL: ts.URL, Chain: "Solana"})
	pools, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "raydium", pools[0].Project)
}

func TestFetch_CorruptedRecordStaysRecordLocal(t *testing.T) {
	// The middle record has a non-numeric apy; only it is dropped.
	ts := poolServer(t, `{"data":[
		{"project":"raydium","pool":"p1","symbol":"SOL-USDC","chain":"Solana","apy":15.0,"tvlUsd":1000000},
		{"project":"broken","pool":"p2","symbol":"X-Y","chain":"Solana","apy":"n/a","tvlUsd":100},
		{"project":"orca","pool":"p3","symbol":"ORCA-SOL","chain":"Solana","apy":9.0,"tvlUsd":4000000}
	]}`)

	client := NewDefiLlamaClient(config.Config{YieldsURL: ts.URL, Chain: "Solana"})
	pools, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Equal(t, "p1", pools[0].PoolID)
	assert.Equal(t, "p3", pools[1].PoolID)
}
