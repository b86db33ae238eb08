package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// erc20ABI is the read-only subset the gateway needs: decimals for metadata
// probes, balanceOf/allowance for sweep previews.
const erc20ABI = `[{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"payable":false,"stateMutability":"view","type":"function"},{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

// Caller performs read-only ERC-20 and native balance calls against one RPC
// endpoint. The client dials lazily so the gateway can boot without the node.
type Caller struct {
	rpcURL  string
	mu      sync.Mutex
	client  *ethclient.Client
	abi     abi.ABI
	timeout time.Duration
	retries int
}

func NewCaller(rpcURL string, timeout time.Duration, retries int) (*Caller, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi: %w", err)
	}
	return &Caller{
		rpcURL:  strings.TrimSpace(rpcURL),
		abi:     parsedABI,
		timeout: timeout,
		retries: retries,
	}, nil
}

// Decimals queries token.decimals().
func (c *Caller) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals return type %T", out[0])
	}
	return decimals, nil
}

// BalanceOf queries token.balanceOf(owner).
func (c *Caller) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := c.call(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf return type %T", out[0])
	}
	return balance, nil
}

// Allowance queries token.allowance(owner, spender).
func (c *Caller) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := c.call(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance return type %T", out[0])
	}
	return allowance, nil
}

// NativeBalance queries the account's native coin balance at head.
func (c *Caller) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		client, err := c.getClient(attemptCtx)
		if err != nil {
			cancel()
			lastErr = err
			if !shouldRetry(ctx, attempt, c.retries) {
				break
			}
			continue
		}
		balance, err := client.BalanceAt(attemptCtx, account, nil)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("rpc call failed: %w", err)
			if !shouldRetry(ctx, attempt, c.retries) {
				break
			}
			continue
		}
		return balance, nil
	}
	return nil, lastErr
}

func (c *Caller) call(ctx context.Context, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	if c.rpcURL == "" {
		return nil, fmt.Errorf("rpc url not configured")
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack call data: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		client, err := c.getClient(attemptCtx)
		if err != nil {
			cancel()
			lastErr = err
			if !shouldRetry(ctx, attempt, c.retries) {
				break
			}
			continue
		}

		msg := ethereum.CallMsg{
			To:   &to,
			Data: data,
		}
		output, err := client.CallContract(attemptCtx, msg, nil)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("rpc call failed: %w", err)
			if !shouldRetry(ctx, attempt, c.retries) {
				break
			}
			continue
		}
		out, err := c.abi.Unpack(method, output)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty %s return", method)
		}
		return out, nil
	}
	return nil, lastErr
}

func (c *Caller) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rpc: %w", err)
	}
	c.client = client
	return c.client, nil
}

func shouldRetry(ctx context.Context, attempt, max int) bool {
	if attempt >= max {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	default:
	}
	time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
	return true
}
