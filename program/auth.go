// Package program implements the instruction handlers that mutate
// serviceability accounts: the five-step pipeline of decode, validate
// accounts, authorize, check entity preconditions, and mutate/resize/persist.
package program

import (
	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

// Role is one of the fixed authorization predicates every handler checks
// the transaction signer against before touching entity state.
type Role int

const (
	RoleFoundation Role = iota
	RoleActivator
	RoleHealthOracle
	RoleSentinel
	RoleReservationAuth
	RoleOwner
	RoleDeviceAllowlist
	RoleUserAllowlist
)

// Authorize reports whether signer satisfies role given the program's
// global state and, where the role is entity-scoped, the entity's own
// owner field.
func Authorize(role Role, gs *serviceability.GlobalState, signer solana.PublicKey, entityOwner *serviceability.Pubkey) error {
	sk := serviceability.Pubkey(signer)
	switch role {
	case RoleFoundation:
		if containsPubkey(gs.FoundationAllowlist, sk) {
			return nil
		}
		return serviceability.Err(serviceability.CodeNotAllowed, "signer is not a foundation authority")
	case RoleActivator:
		if gs.ActivatorAuthority == sk {
			return nil
		}
		return serviceability.Err(serviceability.CodeNotAllowed, "signer is not the activator authority")
	case RoleHealthOracle:
		if gs.HealthOracle == sk {
			return nil
		}
		return serviceability.Err(serviceability.CodeNotAllowed, "signer is not the health oracle")
	case RoleSentinel:
		if gs.SentinelAuthority == sk {
			return nil
		}
		return serviceability.Err(serviceability.CodeNotAllowed, "signer is not the sentinel authority")
	case RoleReservationAuth:
		if gs.ReservationAuthority == sk {
			return nil
		}
		return serviceability.Err(serviceability.CodeNotAllowed, "signer is not the reservation authority")
	case RoleOwner:
		if entityOwner != nil && *entityOwner == sk {
			return nil
		}
		return serviceability.Err(serviceability.CodeNotAllowed, "signer does not own this account")
	case RoleDeviceAllowlist:
		if containsPubkey(gs.DeviceAllowlist, sk) || containsPubkey(gs.FoundationAllowlist, sk) {
			return nil
		}
		return serviceability.Err(serviceability.CodeNotAllowed, "signer is not device-allowlisted")
	case RoleUserAllowlist:
		if containsPubkey(gs.UserAllowlist, sk) || containsPubkey(gs.FoundationAllowlist, sk) {
			return nil
		}
		return serviceability.Err(serviceability.CodeNotAllowed, "signer is not user-allowlisted")
	default:
		return serviceability.Err(serviceability.CodeNotAllowed, "unknown role")
	}
}

// AuthorizeAny succeeds if signer satisfies any of the given roles, for
// instructions multiple authorities may invoke (for example both the
// foundation and the sentinel may suspend a device).
func AuthorizeAny(roles []Role, gs *serviceability.GlobalState, signer solana.PublicKey, entityOwner *serviceability.Pubkey) error {
	var lastErr error
	for _, role := range roles {
		if err := Authorize(role, gs, signer, entityOwner); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}

func containsPubkey(list []serviceability.Pubkey, target serviceability.Pubkey) bool {
	for _, p := range list {
		if p == target {
			return true
		}
	}
	return false
}
