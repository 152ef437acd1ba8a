/*
gate.go - Caller authorization against the identity gate

PURPOSE:
  Every engine and reporter operation takes the caller as an explicit
  Principal. The principal carried by a token is only a claim: the checks
  here re-resolve it through the Gate so that deleted, deactivated or
  demoted accounts lose access immediately.

CHECKS:
  requireActive         any active account (sales, catalog reads)
  requireAdmin          active Admin (catalog writes, stock, reports)
  authorizeDestructive  active Admin + re-authentication + admin quorum
                        (single and bulk reversal)
*/
package shop

import (
	"context"
	"errors"
)

// Gate is the identity capability the engine consumes. It is implemented by
// the auth package; the engine only asks questions, it never stores users.
type Gate interface {
	// Resolve loads the current state of the caller. A deleted caller
	// yields a NotFound error.
	Resolve(ctx context.Context, id UserID) (Principal, error)

	// VerifyCredential reports whether secret matches the caller's stored
	// credential hash.
	VerifyCredential(ctx context.Context, id UserID, secret string) (bool, error)

	// ActiveAdminCount counts accounts with RoleAdmin that are active.
	ActiveAdminCount(ctx context.Context) (int, error)
}

// resolveCaller loads the caller's current state. Unknown callers are
// unauthorized, not missing.
func resolveCaller(ctx context.Context, gate Gate, caller Principal) (Principal, error) {
	if caller.IsAnonymous() {
		return Principal{}, ErrUnauthorized
	}
	current, err := gate.Resolve(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	return current, nil
}

func requireActive(ctx context.Context, gate Gate, caller Principal) (Principal, error) {
	current, err := resolveCaller(ctx, gate, caller)
	if err != nil {
		return current, err
	}
	if !current.Active {
		return current, ErrUnauthorized
	}
	return current, nil
}

func requireAdmin(ctx context.Context, gate Gate, caller Principal) (Principal, error) {
	current, err := resolveCaller(ctx, gate, caller)
	if err != nil {
		return current, err
	}
	if !current.IsAdmin() {
		return current, ErrUnauthorized
	}
	return current, nil
}

// authorizeDestructive runs the single check shared by every reversal path:
// role, reauthentication, then admin quorum. The quorum is evaluated on every
// call regardless of what is being reversed.
func (e *Engine) authorizeDestructive(ctx context.Context, caller Principal, secret string) (Principal, error) {
	current, err := e.requireAdmin(ctx, caller)
	if err != nil {
		return current, err
	}

	ok, err := e.gate.VerifyCredential(ctx, current.UserID, secret)
	if err != nil {
		return current, err
	}
	if !ok {
		return current, ErrInvalidCredential
	}

	admins, err := e.gate.ActiveAdminCount(ctx)
	if err != nil {
		return current, err
	}
	if admins < MinActiveAdmins {
		return current, &QuorumError{ActiveAdmins: admins, Required: MinActiveAdmins}
	}
	return current, nil
}

func (e *Engine) requireAdmin(ctx context.Context, caller Principal) (Principal, error) {
	return requireAdmin(ctx, e.gate, caller)
}

func (e *Engine) requireActive(ctx context.Context, caller Principal) (Principal, error) {
	return requireActive(ctx, e.gate, caller)
}
