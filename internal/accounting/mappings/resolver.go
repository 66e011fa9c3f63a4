package mappings

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Resolver maps roles to account ids: an account_mappings override wins,
// otherwise the role's default code is looked up in the chart.
type Resolver struct {
	repo         Repository
	policy       MissingPolicy
	suspenseCode string
}

// NewResolver constructs a resolver. A blank suspense code falls back to the
// default suspense code.
func NewResolver(repo Repository, policy MissingPolicy, suspenseCode string) *Resolver {
	if policy == "" {
		policy = PolicySkip
	}
	if suspenseCode == "" {
		suspenseCode = DefaultCodes[RoleSuspense]
	}
	return &Resolver{repo: repo, policy: policy, suspenseCode: suspenseCode}
}

// Policy reports the configured missing account policy.
func (r *Resolver) Policy() MissingPolicy {
	return r.policy
}

// Resolve returns the account for role. Under the suspense policy a missing
// account resolves to the suspense account instead; otherwise the result is
// a *shared.MissingAccountError.
func (r *Resolver) Resolve(ctx context.Context, role Role) (int64, error) {
	id, err := r.lookup(ctx, role)
	if err == nil || !errors.Is(err, shared.ErrMissingAccount) {
		return id, err
	}
	if r.policy == PolicySuspense && role != RoleSuspense {
		if sid, serr := r.lookupCode(ctx, RoleSuspense, r.suspenseCode); serr == nil {
			return sid, nil
		}
	}
	return 0, err
}

func (r *Resolver) lookup(ctx context.Context, role Role) (int64, error) {
	mapping, err := r.repo.Get(ctx, Module, string(role))
	switch {
	case err == nil:
		return mapping.AccountID, nil
	case !errors.Is(err, shared.ErrMappingNotFound):
		return 0, err
	}
	code, ok := DefaultCodes[role]
	if !ok {
		return 0, fmt.Errorf("accounting: unknown account role %q", role)
	}
	if role == RoleSuspense {
		code = r.suspenseCode
	}
	return r.lookupCode(ctx, role, code)
}

func (r *Resolver) lookupCode(ctx context.Context, role Role, code string) (int64, error) {
	id, err := r.repo.ActiveAccountIDByCode(ctx, code)
	if errors.Is(err, shared.ErrAccountNotFound) {
		return 0, &shared.MissingAccountError{Code: code, Role: string(role)}
	}
	return id, err
}
