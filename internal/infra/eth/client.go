package eth

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// nonceABI is the only contract surface this service calls directly: the
// per-address replay counter both NFT contracts expose.
const nonceABIJSON = `[{"name":"getNonce","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`

// Client wraps an RPC connection with an enforced per-call timeout.
type Client struct {
	rpc     *ethclient.Client
	abi     abi.ABI
	timeout time.Duration
}

// Dial connects to the chain RPC endpoint.
func Dial(ctx context.Context, rawURL string, timeout time.Duration) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(nonceABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse nonce abi: %w", err)
	}
	rpc, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{rpc: rpc, abi: parsed, timeout: timeout}, nil
}

// MintNonce calls the contract's getNonce view for a user address.
func (c *Client) MintNonce(ctx context.Context, contract, user common.Address) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.abi.Pack("getNonce", user)
	if err != nil {
		return nil, fmt.Errorf("pack getNonce: %w", err)
	}
	raw, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getNonce: %w", err)
	}
	out, err := c.abi.Unpack("getNonce", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack getNonce: %w", err)
	}
	nonce, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getNonce return type %T", out[0])
	}
	return nonce, nil
}

// TransactionReceipt fetches a receipt; ethereum.NotFound passes through so
// the confirmer can treat it as pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.rpc.TransactionReceipt(ctx, txHash)
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}
