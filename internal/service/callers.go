package service

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/DustGate/dustgate/internal/config"
)

// Caller is an authenticated batch submitter: the gateway API key it
// presents and the taker address it acts for. Swept tokens and overage
// refunds go to that address, so the key-to-address binding is the whole
// authentication story.
type Caller struct {
	APIKey  string
	Address common.Address
}

// CallerBook maps gateway API keys to callers and owns their rate limiters.
type CallerBook struct {
	mu            sync.RWMutex
	callers       map[string]*Caller       // key: gateway API key
	limiters      map[common.Address]*rate.Limiter
	defaultCaller *Caller
}

// NewCallerBook registers the configured callers. The first configured
// caller doubles as the default for deployments that do not require an API
// key; with no callers configured there is no default and every request
// must present a key.
func NewCallerBook(cfg *config.Config) (*CallerBook, error) {
	book := &CallerBook{
		callers:  make(map[string]*Caller),
		limiters: make(map[common.Address]*rate.Limiter),
	}
	for _, callerCfg := range cfg.Callers {
		if callerCfg.APIKey == "" {
			return nil, fmt.Errorf("caller with empty api_key")
		}
		if !common.IsHexAddress(callerCfg.Address) {
			return nil, fmt.Errorf("invalid caller address: %s", callerCfg.Address)
		}
		caller := &Caller{
			APIKey:  callerCfg.APIKey,
			Address: common.HexToAddress(callerCfg.Address),
		}
		book.Register(caller, callerCfg.QPS, callerCfg.Burst)
		if book.defaultCaller == nil {
			book.defaultCaller = caller
		}
	}
	return book, nil
}

// Register adds a caller with its rate limit. QPS zero means unlimited.
func (b *CallerBook) Register(caller *Caller, qps float64, burst int) {
	if caller == nil {
		return
	}
	limit := rate.Limit(qps)
	if limit == 0 {
		limit = rate.Inf
	}
	if burst == 0 {
		burst = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.callers[caller.APIKey] = caller
	b.limiters[caller.Address] = rate.NewLimiter(limit, burst)
}

func (b *CallerBook) GetByAPIKey(apiKey string) (*Caller, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	caller, ok := b.callers[apiKey]
	return caller, ok
}

func (b *CallerBook) DefaultCaller() *Caller {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.defaultCaller
}

// Limiter returns the caller's rate limiter, nil for unknown addresses.
func (b *CallerBook) Limiter(addr common.Address) *rate.Limiter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.limiters[addr]
}
