// Package ledger provides the account-store abstraction instruction
// handlers and the reconciler operate against, plus adapters that bind
// that abstraction to a real Solana RPC endpoint or to an in-memory store
// for tests.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

// Account is the raw persisted form of one on-chain account: its owner
// program, lamport balance, and byte payload (tag-prefixed per
// sdk/serviceability).
type Account struct {
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// AccountStore is the minimal account-ledger surface every instruction
// handler is written against. A real deployment backs it with Solana RPC
// calls; tests back it with the in-memory Store below.
type AccountStore interface {
	Get(ctx context.Context, addr solana.PublicKey) (Account, bool, error)
	GetAllOfType(ctx context.Context, tag serviceability.AccountType) (map[solana.PublicKey]Account, error)
	Put(ctx context.Context, addr solana.PublicKey, acc Account) error
	Close(ctx context.Context, addr solana.PublicKey, receiver solana.PublicKey) error
	Epoch(ctx context.Context) (uint64, error)
}

// Store is an in-memory AccountStore used by program and activator tests,
// and by local development without a validator.
type Store struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]Account
	epoch    uint64
}

func NewStore() *Store {
	return &Store{accounts: make(map[solana.PublicKey]Account)}
}

func (s *Store) Get(_ context.Context, addr solana.PublicKey) (Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[addr]
	return acc, ok, nil
}

func (s *Store) GetAllOfType(_ context.Context, tag serviceability.AccountType) (map[solana.PublicKey]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[solana.PublicKey]Account)
	for addr, acc := range s.accounts {
		if len(acc.Data) == 0 || serviceability.AccountType(acc.Data[0]) != tag {
			continue
		}
		out[addr] = acc
	}
	return out, nil
}

func (s *Store) Put(_ context.Context, addr solana.PublicKey, acc Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[addr] = acc
	return nil
}

func (s *Store) Close(_ context.Context, addr solana.PublicKey, receiver solana.PublicKey) error {
	if addr == receiver {
		return fmt.Errorf("ledger: close: account %s cannot receive its own lamports", addr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[addr]; !ok {
		return fmt.Errorf("ledger: close: account %s does not exist", addr)
	}
	delete(s.accounts, addr)
	return nil
}

func (s *Store) Epoch(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch, nil
}

// SetEpoch lets tests advance the simulated epoch clock.
func (s *Store) SetEpoch(e uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch = e
}

// Snapshot returns every stored address in stable sorted order, for
// deterministic test assertions.
func (s *Store) Snapshot() []solana.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]solana.PublicKey, 0, len(s.accounts))
	for addr := range s.accounts {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
