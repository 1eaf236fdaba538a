package activator

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

// GraceEpochs is how far LastAccessEpoch may lag the current epoch before
// a user is considered out of credits.
const GraceEpochs = 3

// CheckAccessPass re-evaluates one user's access pass against the
// current epoch, submitting CheckUserAccessPass when its seat status
// needs to change. It is pluggable so tests can observe sweep behavior
// without a full Program wiring.
type CheckAccessPassFunc func(ctx context.Context, userAddr, accessPassAddr solana.PublicKey, epoch uint64, grace uint64) error

// sweepAccessPasses re-evaluates every user's access pass against the
// current epoch, fanning the independent per-user checks out across a
// bounded worker pool since the sweep set can run into the thousands and
// each check is an independent RPC round trip.
func (r *Reconciler) sweepAccessPasses(ctx context.Context) error {
	epoch, err := r.store.Epoch(ctx)
	if err != nil {
		return err
	}

	pairs := matchUsersToAccessPasses(r.proj.Users(), r.proj.AccessPasses())

	pool := pond.NewPool(16)
	defer pool.StopAndWait()

	for _, pair := range pairs {
		pair := pair
		pool.Submit(func() {
			if r.CheckAccessPass == nil {
				return
			}
			if err := r.CheckAccessPass(ctx, pair.userAddr, pair.accessPassAddr, epoch, GraceEpochs); err != nil {
				r.log.Warn("access pass check failed", "user", pair.userAddr, "error", err)
			}
		})
	}

	r.metrics.AccessPassSweeps.Inc()
	return nil
}

type userAccessPassPair struct {
	userAddr       solana.PublicKey
	accessPassAddr solana.PublicKey
}

// matchUsersToAccessPasses pairs each seat-holding user with the access
// pass billed to (ClientIP, Owner), the same key AccessPassPDA derives
// from.
func matchUsersToAccessPasses(users map[solana.PublicKey]*serviceability.User, passes map[solana.PublicKey]*serviceability.AccessPass) []userAccessPassPair {
	byKey := make(map[[36]byte]solana.PublicKey, len(passes))
	for addr, ap := range passes {
		var key [36]byte
		copy(key[:4], ap.ClientIP[:])
		copy(key[4:], ap.UserPayer[:])
		byKey[key] = addr
	}

	var out []userAccessPassPair
	for userAddr, u := range users {
		if !u.Status.ActiveForSeat() {
			continue
		}
		var key [36]byte
		copy(key[:4], u.ClientIP[:])
		copy(key[4:], u.Owner[:])
		if apAddr, ok := byKey[key]; ok {
			out = append(out, userAccessPassPair{userAddr: userAddr, accessPassAddr: apAddr})
		}
	}
	return out
}
