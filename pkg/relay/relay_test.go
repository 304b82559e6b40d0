package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method  string
	auth    string
	params  json.RawMessage
	rawBody rpcRequest
}

// newTestRelay serves canned JSON-RPC responses and records what it received.
func newTestRelay(t *testing.T, respond func(method string) (interface{}, *rpcError)) (*Client, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		captured.method = req.Method
		captured.auth = r.Header.Get("Authorization")
		captured.rawBody = req
		raw, _ := json.Marshal(req.Params[0])
		captured.params = raw

		result, rpcErr := respond(req.Method)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	return New(server.URL, "test-token", "mainnet", time.Second, nil), captured
}

func testTxs() []hexutil.Bytes {
	return []hexutil.Bytes{{0x02, 0xf8, 0x01}, {0x02, 0xf8, 0x02}}
}

func TestSimulateSuccess(t *testing.T) {
	client, captured := newTestRelay(t, func(method string) (interface{}, *rpcError) {
		return SimulationResult{
			BundleHash:   "0xabc",
			TotalGasUsed: 42_000,
			Results: []TxSimulation{
				{TxHash: "0x1", GasUsed: 21_000},
				{TxHash: "0x2", GasUsed: 21_000},
			},
		}, nil
	})

	result, err := client.Simulate(context.Background(), testTxs(), 1234)
	require.NoError(t, err)
	assert.Equal(t, "eth_callBundle", captured.method)
	assert.Equal(t, "Bearer test-token", captured.auth)
	assert.Equal(t, uint64(42_000), result.TotalGasUsed)

	var params callBundleParams
	require.NoError(t, json.Unmarshal(captured.params, &params))
	assert.Equal(t, "0x4d2", params.BlockNumber)
	assert.Equal(t, "latest", params.StateBlockNumber)
	assert.Len(t, params.Txs, 2)
}

func TestSimulateRevertIsError(t *testing.T) {
	client, _ := newTestRelay(t, func(method string) (interface{}, *rpcError) {
		return SimulationResult{
			Results: []TxSimulation{
				{TxHash: "0x1", GasUsed: 21_000},
				{TxHash: "0x2", Error: "execution reverted", Revert: "0x08c379a0"},
			},
		}, nil
	})

	result, err := client.Simulate(context.Background(), testTxs(), 1234)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted in simulation")
	assert.Contains(t, err.Error(), "0x2")
	require.NotNil(t, result, "the per-tx outcomes are still returned for diagnostics")
}

func TestSubmitSuccess(t *testing.T) {
	client, captured := newTestRelay(t, func(method string) (interface{}, *rpcError) {
		return SubmitResult{BundleHash: "0xdeadbeef"}, nil
	})

	result, err := client.Submit(context.Background(), testTxs(), 5678, []string{"builder-a", "builder-b"})
	require.NoError(t, err)
	assert.Equal(t, "eth_sendBundle", captured.method)
	assert.Equal(t, "0xdeadbeef", result.BundleHash)

	var params sendBundleParams
	require.NoError(t, json.Unmarshal(captured.params, &params))
	assert.Equal(t, "0x162e", params.BlockNumber)
	assert.Equal(t, []string{"builder-a", "builder-b"}, params.Builders)
}

func TestRPCErrorExposesCode(t *testing.T) {
	client, _ := newTestRelay(t, func(method string) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32603, Message: "internal error"}
	})

	_, err := client.Submit(context.Background(), testTxs(), 1, nil)
	require.Error(t, err)

	var coded interface{ ErrorCode() int }
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, -32603, coded.ErrorCode())
	assert.Contains(t, err.Error(), "internal error")
}

func TestHTTPErrorExposesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "", "mainnet", time.Second, nil)
	_, err := client.Simulate(context.Background(), testTxs(), 1)
	require.Error(t, err)

	var coded interface{ ErrorCode() int }
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, http.StatusTooManyRequests, coded.ErrorCode())
}

func TestNoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1, "result": SubmitResult{BundleHash: "0x1"},
		})
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "", "mainnet", time.Second, nil)
	_, err := client.Submit(context.Background(), testTxs(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}
