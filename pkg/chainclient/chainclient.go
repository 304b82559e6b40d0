// Package chainclient wraps the JSON-RPC connection to a chain node behind
// the narrow provider contract consumed by the execution engine.
package chainclient

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Provider is the chain collaborator contract consumed by the engine. All
// failures are ordinary errors classified at the retry executor layer.
type Provider interface {
	// SuggestGasPrice returns the node's current fee quote.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// EstimateGas returns the node's gas estimate for the described call.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	// PendingNonceAt returns the pending transaction count for an address.
	PendingNonceAt(ctx context.Context, address common.Address) (uint64, error)
	// BlockNumber returns the current chain height.
	BlockNumber(ctx context.Context) (uint64, error)
}

// Client is the ethclient-backed Provider implementation. Every call is bound
// to the configured timeout on top of the caller's context.
type Client struct {
	rpcURL  string
	timeout time.Duration
	client  *ethclient.Client
}

var _ Provider = (*Client)(nil)

// New connects to the chain node at the provided RPC URL.
func New(rpcURL string, timeout time.Duration) (*Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain node at %s: %v", rpcURL, err)
	}
	return &Client{
		rpcURL:  rpcURL,
		timeout: timeout,
		client:  client,
	}, nil
}

// ChainID returns the chain identifier reported by the node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not connected")
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.client.ChainID(ctx)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if c.client == nil {
		return nil, fmt.Errorf("client not connected")
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.client.SuggestGasPrice(ctx)
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if c.client == nil {
		return 0, fmt.Errorf("client not connected")
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.client.EstimateGas(ctx, msg)
}

func (c *Client) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	if c.client == nil {
		return 0, fmt.Errorf("client not connected")
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.client.PendingNonceAt(ctx, address)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if c.client == nil {
		return 0, fmt.Errorf("client not connected")
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.client.BlockNumber(ctx)
}

// Close releases the underlying connection.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
