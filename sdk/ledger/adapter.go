package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dgraph-io/ristretto"
	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

// RPCClient is the subset of solana-go's rpc.Client the adapter needs,
// narrowed so tests can supply a fake.
type RPCClient interface {
	GetAccountInfo(ctx context.Context, addr solana.PublicKey) (*solanarpc.GetAccountInfoResult, error)
	GetProgramAccounts(ctx context.Context, program solana.PublicKey) (solanarpc.GetProgramAccountsResult, error)
	GetEpochInfo(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetEpochInfoResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solanarpc.TransactionOpts) (solana.Signature, error)
	GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error)
}

// Adapter implements AccountStore plus transaction submission against a
// real Solana RPC endpoint, retrying transient RPC failures with bounded
// exponential backoff rather than surfacing them to the reconciler as
// permanent errors.
type Adapter struct {
	log     *slog.Logger
	rpc     RPCClient
	program solana.PublicKey
	signer  solana.PrivateKey
	cache   *ristretto.Cache

	submitTimeout time.Duration
}

func NewAdapter(log *slog.Logger, rpc RPCClient, program solana.PublicKey, signer solana.PrivateKey) *Adapter {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		// Config above is static and known-valid; a cache-construction
		// failure here would only ever be a programming error.
		panic(fmt.Sprintf("ledger: building account cache: %v", err))
	}
	return &Adapter{log: log, rpc: rpc, program: program, signer: signer, cache: cache, submitTimeout: 30 * time.Second}
}

func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	op := func() (T, error) {
		v, err := fn()
		if err != nil {
			return v, err
		}
		return v, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
	)
}

// Get fetches one account, consulting a small read-through cache first so
// repeated lookups of the same address within a poll cycle (a link's two
// device sides, a user's device) don't cost a second RPC round trip.
func (a *Adapter) Get(ctx context.Context, addr solana.PublicKey) (Account, bool, error) {
	if v, ok := a.cache.Get(addr.String()); ok {
		return v.(Account), true, nil
	}

	res, err := withRetry(ctx, func() (*solanarpc.GetAccountInfoResult, error) {
		return a.rpc.GetAccountInfo(ctx, addr)
	})
	if err != nil {
		if err == solanarpc.ErrNotFound {
			return Account{}, false, nil
		}
		return Account{}, false, fmt.Errorf("ledger: get %s: %w", addr, err)
	}
	if res == nil || res.Value == nil {
		return Account{}, false, nil
	}
	acc := Account{
		Owner:    res.Value.Owner,
		Lamports: res.Value.Lamports,
		Data:     res.Value.Data.GetBinary(),
	}
	a.cache.Set(addr.String(), acc, int64(len(acc.Data)))
	return acc, true, nil
}

// invalidate drops an address from the read-through cache, used after a
// submitted instruction is confirmed to have mutated it.
func (a *Adapter) invalidate(addr solana.PublicKey) {
	a.cache.Del(addr.String())
}

func (a *Adapter) GetAllOfType(ctx context.Context, tag serviceability.AccountType) (map[solana.PublicKey]Account, error) {
	res, err := withRetry(ctx, func() (solanarpc.GetProgramAccountsResult, error) {
		return a.rpc.GetProgramAccounts(ctx, a.program)
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: get_all_of_type %s: %w", tag, err)
	}
	out := make(map[solana.PublicKey]Account)
	for _, r := range res {
		data := r.Account.Data.GetBinary()
		if len(data) == 0 || serviceability.AccountType(data[0]) != tag {
			continue
		}
		out[r.Pubkey] = Account{Owner: r.Account.Owner, Lamports: r.Account.Lamports, Data: data}
	}
	return out, nil
}

func (a *Adapter) Epoch(ctx context.Context) (uint64, error) {
	res, err := withRetry(ctx, func() (*solanarpc.GetEpochInfoResult, error) {
		return a.rpc.GetEpochInfo(ctx, solanarpc.CommitmentConfirmed)
	})
	if err != nil {
		return 0, fmt.Errorf("ledger: get_epoch: %w", err)
	}
	return res.Epoch, nil
}

// Put is unused on the live adapter: account mutation only ever happens by
// submitting a signed instruction, never by writing a payload directly.
func (a *Adapter) Put(context.Context, solana.PublicKey, Account) error {
	return fmt.Errorf("ledger: direct Put is not supported against a live validator; submit an instruction instead")
}

func (a *Adapter) Close(context.Context, solana.PublicKey, solana.PublicKey) error {
	return fmt.Errorf("ledger: direct Close is not supported against a live validator; submit a close-account instruction instead")
}

// Submit signs ix with the adapter's configured signer, sends it, and
// waits for the signature to clear processed and then confirmed
// commitment before returning.
func (a *Adapter) Submit(ctx context.Context, ix solana.Instruction) (solana.Signature, error) {
	ctx, cancel := context.WithTimeout(ctx, a.submitTimeout)
	defer cancel()

	bh, err := withRetry(ctx, func() (*solanarpc.GetLatestBlockhashResult, error) {
		return a.rpc.GetLatestBlockhash(ctx, solanarpc.CommitmentFinalized)
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("ledger: submit: get blockhash: %w", err)
	}

	tx, err := solana.NewTransaction([]solana.Instruction{ix}, bh.Value.Blockhash, solana.TransactionPayer(a.signer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("ledger: submit: build tx: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(a.signer.PublicKey()) {
			return &a.signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("ledger: submit: sign tx: %w", err)
	}

	sig, err := a.rpc.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{SkipPreflight: false})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("ledger: submit: send tx: %w", err)
	}

	if err := a.waitConfirmed(ctx, sig); err != nil {
		return sig, err
	}
	if metas, err := ix.Accounts(); err == nil {
		for _, m := range metas {
			if m.IsWritable {
				a.invalidate(m.PublicKey)
			}
		}
	}
	a.log.Debug("submitted instruction", "signature", base64.StdEncoding.EncodeToString(sig[:]))
	return sig, nil
}

func (a *Adapter) waitConfirmed(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(400 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("ledger: submit: timed out waiting for confirmation of %s", sig)
		case <-ticker.C:
			statuses, err := a.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue
			}
			if len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue
			}
			st := statuses.Value[0]
			if st.Err != nil {
				return fmt.Errorf("ledger: submit: transaction failed: %v", st.Err)
			}
			if st.ConfirmationStatus == solanarpc.ConfirmationStatusConfirmed || st.ConfirmationStatus == solanarpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}
