package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures RPCStore.
type Config struct {
	// RPC overrides the default endpoint per network name.
	RPC map[string]string
	// RateLimit caps outgoing RPC calls per second across all networks.
	// Default: 20. Burst defaults to twice the rate.
	RateLimit float64
	Burst     int
	// ReceiptPoll is the interval between receipt lookups. Default: 2s.
	ReceiptPoll time.Duration
}

func (c *Config) defaults() {
	if c.RateLimit <= 0 {
		c.RateLimit = 20
	}
	if c.Burst <= 0 {
		c.Burst = int(2 * c.RateLimit)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
	if c.ReceiptPoll <= 0 {
		c.ReceiptPoll = 2 * time.Second
	}
}

// RPCStore reads and writes ERC725Y data over JSON-RPC. One client is dialed
// lazily per network and shared by all callers.
type RPCStore struct {
	cfg     Config
	limiter *rate.Limiter
	log     *zap.Logger

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

func NewRPCStore(cfg Config, log *zap.Logger) *RPCStore {
	cfg.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &RPCStore{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		log:     log,
		clients: make(map[string]*ethclient.Client),
	}
}

// Endpoint returns the RPC URL used for n.
func (s *RPCStore) Endpoint(n Network) string {
	if u := s.cfg.RPC[n.Name]; u != "" {
		return u
	}
	return n.RPCURL
}

func (s *RPCStore) client(ctx context.Context, n Network) (*ethclient.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[n.Name]; ok {
		return c, nil
	}
	url := s.Endpoint(n)
	if url == "" {
		return nil, fmt.Errorf("%w: %s has no RPC endpoint", ErrUnknownNetwork, n.Name)
	}
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", n.Name, err)
	}
	s.log.Debug("rpc client dialed", zap.String("network", n.Name), zap.String("url", url))
	s.clients[n.Name] = c
	return c, nil
}

func (s *RPCStore) call(ctx context.Context, n Network, to common.Address, data []byte) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	c, err := s.client(ctx, n)
	if err != nil {
		return nil, err
	}
	out, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: eth_call %s on %s: %w", to.Hex(), n.Name, err)
	}
	if len(out) == 0 {
		return nil, ErrNoStore
	}
	return out, nil
}

// GetData reads one value. A zero-length result means the key is unset.
func (s *RPCStore) GetData(ctx context.Context, n Network, profile common.Address, key common.Hash) ([]byte, error) {
	data, err := PackGetData(key)
	if err != nil {
		return nil, err
	}
	out, err := s.call(ctx, n, profile, data)
	if err != nil {
		return nil, err
	}
	return UnpackGetData(out)
}

func (s *RPCStore) GetDataBatch(ctx context.Context, n Network, profile common.Address, keys []common.Hash) ([][]byte, error) {
	data, err := PackGetDataBatch(keys)
	if err != nil {
		return nil, err
	}
	out, err := s.call(ctx, n, profile, data)
	if err != nil {
		return nil, err
	}
	return UnpackGetDataBatch(out)
}

// SendTransaction broadcasts a signed transaction.
func (s *RPCStore) SendTransaction(ctx context.Context, n Network, tx *types.Transaction) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	c, err := s.client(ctx, n)
	if err != nil {
		return err
	}
	if err := c.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("chain: send %s on %s: %w", tx.Hash().Hex(), n.Name, err)
	}
	s.log.Info("transaction sent", zap.String("network", n.Name), zap.String("tx", tx.Hash().Hex()))
	return nil
}

// WaitReceipt polls until tx is mined or ctx ends. A reverted transaction
// returns its receipt together with ErrReverted.
func (s *RPCStore) WaitReceipt(ctx context.Context, n Network, tx common.Hash) (*types.Receipt, error) {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		c, err := s.client(ctx, n)
		if err != nil {
			return nil, err
		}
		r, err := c.TransactionReceipt(ctx, tx)
		switch {
		case err == nil:
			if r.Status != types.ReceiptStatusSuccessful {
				return r, fmt.Errorf("%w: %s", ErrReverted, tx.Hex())
			}
			return r, nil
		case !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("chain: receipt %s: %w", tx.Hex(), err)
		}

		t := time.NewTimer(s.cfg.ReceiptPoll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Close releases all dialed clients.
func (s *RPCStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, c := range s.clients {
		c.Close()
		delete(s.clients, name)
	}
}
