// Package relay provides a client for submitting transaction bundles to a
// block-builder relay over its JSON-RPC endpoint.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atomiclaunch/bundler/pkg/logger"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultTimeout bounds a single relay round trip.
const DefaultTimeout = 10 * time.Second

// Client represents a bundle relay client.
type Client struct {
	endpoint   string
	authToken  string
	network    string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new relay client. The auth token is optional; when set it is
// sent as a bearer token on every request.
func New(endpoint, authToken, network string, timeout time.Duration, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		endpoint:   endpoint,
		authToken:  authToken,
		network:    network,
		httpClient: createHTTPClient(timeout),
		logger:     log,
	}
}

// SimulationResult is the relay's per-bundle simulation outcome.
type SimulationResult struct {
	BundleHash   string         `json:"bundleHash"`
	TotalGasUsed uint64         `json:"totalGasUsed"`
	Results      []TxSimulation `json:"results"`
	CoinbaseDiff *hexutil.Big   `json:"coinbaseDiff,omitempty"`
}

// TxSimulation is the simulation outcome for one transaction in the bundle.
type TxSimulation struct {
	TxHash  string `json:"txHash"`
	GasUsed uint64 `json:"gasUsed"`
	Error   string `json:"error,omitempty"`
	Revert  string `json:"revert,omitempty"`
}

// SubmitResult is the relay's acknowledgement of an accepted bundle.
type SubmitResult struct {
	BundleHash string `json:"bundleHash"`
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

type callBundleParams struct {
	Txs              []hexutil.Bytes `json:"txs"`
	BlockNumber      string          `json:"blockNumber"`
	StateBlockNumber string          `json:"stateBlockNumber"`
}

type sendBundleParams struct {
	Txs         []hexutil.Bytes `json:"txs"`
	BlockNumber string          `json:"blockNumber"`
	Builders    []string        `json:"builders,omitempty"`
}

// Simulate runs the bundle against pending state and returns the per-tx
// outcomes. A transaction reverting inside the simulation is an error: the
// bundle must not be submitted as assembled.
func (c *Client) Simulate(ctx context.Context, txs []hexutil.Bytes, targetBlock uint64) (*SimulationResult, error) {
	params := callBundleParams{
		Txs:              txs,
		BlockNumber:      hexutil.EncodeUint64(targetBlock),
		StateBlockNumber: "latest",
	}

	var result SimulationResult
	if err := c.call(ctx, "eth_callBundle", params, &result); err != nil {
		return nil, fmt.Errorf("bundle simulation failed: %w", err)
	}

	for _, tx := range result.Results {
		if tx.Error != "" || tx.Revert != "" {
			return &result, fmt.Errorf("transaction %s reverted in simulation: %s%s",
				tx.TxHash, tx.Error, tx.Revert)
		}
	}

	c.logger.DebugWith(logger.Relay, "bundle simulation passed: %d txs, %d gas used",
		len(result.Results), result.TotalGasUsed)
	return &result, nil
}

// Submit sends the bundle for inclusion in the target block.
func (c *Client) Submit(ctx context.Context, txs []hexutil.Bytes, targetBlock uint64, builders []string) (*SubmitResult, error) {
	params := sendBundleParams{
		Txs:         txs,
		BlockNumber: hexutil.EncodeUint64(targetBlock),
		Builders:    builders,
	}

	var result SubmitResult
	if err := c.call(ctx, "eth_sendBundle", params, &result); err != nil {
		return nil, fmt.Errorf("bundle submission failed: %w", err)
	}

	c.logger.InfoWith(logger.Relay, "bundle %s submitted for block %d on %s",
		result.BundleHash, targetBlock, c.network)
	return &result, nil
}

// call performs one JSON-RPC round trip against the relay endpoint.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  []interface{}{params},
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %v", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %v", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.ErrorWith(logger.Relay, "failed to close response body: %v", err)
		}
	}(resp.Body)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read relay response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &httpError{status: resp.StatusCode, body: string(bodyBytes)}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(bodyBytes, &rpcResp); err != nil {
		return fmt.Errorf("failed to decode relay response: %v, body: %s", err, string(bodyBytes))
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %v", method, err)
		}
	}
	return nil
}

// httpError is a non-200 relay response. It exposes the HTTP status through
// ErrorCode so callers matching on numeric codes see it.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.status, e.body)
}

func (e *httpError) ErrorCode() int { return e.status }

// rpcError is a JSON-RPC error object returned by the relay.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Code, e.Message)
}

func (e *rpcError) ErrorCode() int { return e.Code }

// createHTTPClient builds an HTTP client with connection pooling tuned for a
// single relay endpoint.
func createHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
