package mappings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type fakeRepo struct {
	overrides map[string]int64
	codes     map[string]int64
}

func (f *fakeRepo) Get(ctx context.Context, module, key string) (AccountMapping, error) {
	id, ok := f.overrides[key]
	if !ok {
		return AccountMapping{}, shared.ErrMappingNotFound
	}
	return AccountMapping{Module: module, Key: key, AccountID: id}, nil
}

func (f *fakeRepo) List(ctx context.Context, module string) ([]AccountMapping, error) {
	return nil, nil
}

func (f *fakeRepo) Upsert(ctx context.Context, module, key string, accountID int64) (AccountMapping, error) {
	f.overrides[key] = accountID
	return AccountMapping{Module: module, Key: key, AccountID: accountID}, nil
}

func (f *fakeRepo) Delete(ctx context.Context, module, key string) error {
	delete(f.overrides, key)
	return nil
}

func (f *fakeRepo) ActiveAccountIDByCode(ctx context.Context, code string) (int64, error) {
	id, ok := f.codes[code]
	if !ok {
		return 0, shared.ErrAccountNotFound
	}
	return id, nil
}

func TestResolverPrefersOverride(t *testing.T) {
	repo := &fakeRepo{overrides: map[string]int64{"cash": 77}, codes: map[string]int64{"1000": 1, "1200": 2}}
	r := NewResolver(repo, PolicySkip, "")
	ctx := context.Background()

	id, err := r.Resolve(ctx, RoleCash)
	require.NoError(t, err)
	require.Equal(t, int64(77), id)

	id, err = r.Resolve(ctx, RoleReceivable)
	require.NoError(t, err)
	require.Equal(t, int64(2), id)
}

func TestResolverMissingAccount(t *testing.T) {
	repo := &fakeRepo{overrides: map[string]int64{}, codes: map[string]int64{"9999": 99}}
	ctx := context.Background()

	_, err := NewResolver(repo, PolicyError, "").Resolve(ctx, RoleCOGS)
	var missing *shared.MissingAccountError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "5000", missing.Code)
	require.ErrorIs(t, err, shared.ErrMissingAccount)

	id, err := NewResolver(repo, PolicySuspense, "").Resolve(ctx, RoleCOGS)
	require.NoError(t, err)
	require.Equal(t, int64(99), id)

	_, err = NewResolver(repo, PolicySuspense, "9000").Resolve(ctx, RoleCOGS)
	require.ErrorIs(t, err, shared.ErrMissingAccount)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	require.Equal(t, PolicySkip, p)
	p, err = ParsePolicy(" Suspense ")
	require.NoError(t, err)
	require.Equal(t, PolicySuspense, p)
	_, err = ParsePolicy("ignore")
	require.Error(t, err)
}
