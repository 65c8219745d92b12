package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinic-labs/memgate/internal/storage/memory"
	"github.com/kinic-labs/memgate/pkg/types"
)

// fakeBackend counts attempts and fails or skips on demand.
type fakeBackend struct {
	kind      Kind
	err       error // returned by every operation when set
	attempts  int
	available bool
}

func (f *fakeBackend) Kind() Kind { return f.kind }

func (f *fakeBackend) Available(_ context.Context) bool { return f.available }

func (f *fakeBackend) record() (int, error) { f.attempts++; return f.attempts, f.err }

func (f *fakeBackend) Create(_ context.Context, req CreateRequest) (*types.CreateResult, error) {
	if _, err := f.record(); err != nil {
		return nil, err
	}
	return &types.CreateResult{MemoryID: req.MemoryID, CanisterID: "fake-canister"}, nil
}

func (f *fakeBackend) Insert(_ context.Context, _, _, _ string) (*types.InsertReceipt, error) {
	if _, err := f.record(); err != nil {
		return nil, err
	}
	return &types.InsertReceipt{MerkleRoot: "fake-root", ZKProof: "fake-proof"}, nil
}

func (f *fakeBackend) Search(_ context.Context, _, _ string, _ int) ([]types.SearchResult, error) {
	if _, err := f.record(); err != nil {
		return nil, err
	}
	return []types.SearchResult{{Content: "from " + string(f.kind)}}, nil
}

func (f *fakeBackend) Commitment(_ context.Context, _ string) (*types.Commitment, error) {
	if _, err := f.record(); err != nil {
		return nil, err
	}
	return &types.Commitment{}, nil
}

func (f *fakeBackend) List(_ context.Context) ([]string, error) {
	if _, err := f.record(); err != nil {
		return nil, err
	}
	return []string{"fake"}, nil
}

func newRouterWith(remote, sdk *fakeBackend) *Router {
	var r, s Backend
	if remote != nil {
		r = remote
	}
	if sdk != nil {
		s = sdk
	}
	return New(r, s, NewLocalBackend(memory.NewStore()))
}

func TestRouter_PrefersHigherPriorityBackend(t *testing.T) {
	sdk := &fakeBackend{kind: KindSDK}
	r := newRouterWith(nil, sdk)

	receipt, kind, err := r.Insert(context.Background(), "m1", "t", "content")
	require.NoError(t, err)
	assert.Equal(t, KindSDK, kind)
	assert.Equal(t, "fake-proof", receipt.ZKProof)
	assert.Equal(t, 1, sdk.attempts)
}

func TestRouter_FallsThroughToLocalOnFailure(t *testing.T) {
	sdk := &fakeBackend{kind: KindSDK, err: errors.New("bridge down")}
	r := newRouterWith(nil, sdk)

	receipt, kind, err := r.Insert(context.Background(), "m1", "t", "content")
	require.NoError(t, err)
	assert.Equal(t, KindLocal, kind)
	assert.NotEmpty(t, receipt.MerkleRoot)
	assert.Empty(t, receipt.ZKProof)
}

func TestRouter_MonotoneDemotion(t *testing.T) {
	sdk := &fakeBackend{kind: KindSDK, err: errors.New("bridge down")}
	r := newRouterWith(nil, sdk)
	ctx := context.Background()

	_, kind, err := r.Insert(ctx, "m1", "t", "first")
	require.NoError(t, err)
	assert.Equal(t, KindLocal, kind)
	assert.Equal(t, 1, sdk.attempts)

	// Once demoted, the backend is skipped without being attempted,
	// no matter how many requests follow.
	for i := 0; i < 5; i++ {
		_, kind, err = r.Insert(ctx, "m1", "t", "again")
		require.NoError(t, err)
		assert.Equal(t, KindLocal, kind)
	}
	assert.Equal(t, 1, sdk.attempts)

	health := r.Health().Snapshot()
	assert.True(t, health[KindSDK].Tested)
	assert.False(t, health[KindSDK].Working)
}

func TestRouter_SuccessKeepsBackendPromoted(t *testing.T) {
	sdk := &fakeBackend{kind: KindSDK}
	r := newRouterWith(nil, sdk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, kind, err := r.Insert(ctx, "m1", "t", "content")
		require.NoError(t, err)
		assert.Equal(t, KindSDK, kind)
	}
	assert.Equal(t, 3, sdk.attempts)

	health := r.Health().Snapshot()
	assert.True(t, health[KindSDK].Tested)
	assert.True(t, health[KindSDK].Working)
}

func TestRouter_LateFailureDoesNotDemote(t *testing.T) {
	// A backend that passes its first test keeps working=true even if a
	// later call fails; the failed request falls through and the backend
	// is retried on the next request.
	sdk := &fakeBackend{kind: KindSDK}
	r := newRouterWith(nil, sdk)
	ctx := context.Background()

	_, kind, err := r.Insert(ctx, "m1", "t", "first")
	require.NoError(t, err)
	assert.Equal(t, KindSDK, kind)

	sdk.err = errors.New("intermittent")
	_, kind, err = r.Insert(ctx, "m1", "t", "second")
	require.NoError(t, err)
	assert.Equal(t, KindLocal, kind)

	sdk.err = nil
	_, kind, err = r.Insert(ctx, "m1", "t", "third")
	require.NoError(t, err)
	assert.Equal(t, KindSDK, kind)
	assert.Equal(t, 3, sdk.attempts)
}

func TestRouter_SkipDoesNotTouchHealth(t *testing.T) {
	sdk := &fakeBackend{kind: KindSDK, err: ErrSkip}
	r := newRouterWith(nil, sdk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, kind, err := r.Insert(ctx, "m1", "t", "content")
		require.NoError(t, err)
		assert.Equal(t, KindLocal, kind)
	}
	// Skipped every time, attempted every time: never demoted.
	assert.Equal(t, 3, sdk.attempts)
	health := r.Health().Snapshot()
	assert.False(t, health[KindSDK].Tested)
}

func TestRouter_SearchPriorityOrder(t *testing.T) {
	remote := &fakeBackend{kind: KindRemote}
	sdk := &fakeBackend{kind: KindSDK}
	r := newRouterWith(remote, sdk)

	results, kind, err := r.Search(context.Background(), "m1", "q", 5)
	require.NoError(t, err)
	assert.Equal(t, KindRemote, kind)
	assert.Equal(t, "from icp-query", results[0].Content)
	assert.Zero(t, sdk.attempts)

	// Demote the remote backend; the SDK takes over.
	remote.err = errors.New("boundary node down")
	r2 := newRouterWith(remote, sdk)
	results, kind, err = r2.Search(context.Background(), "m1", "q", 5)
	require.NoError(t, err)
	assert.Equal(t, KindSDK, kind)
	assert.Equal(t, "from kinic-sdk", results[0].Content)
}

func TestRouter_CommitmentAndListAreLocalOnly(t *testing.T) {
	remote := &fakeBackend{kind: KindRemote}
	sdk := &fakeBackend{kind: KindSDK}
	local := memory.NewStore()
	r := New(remote, sdk, NewLocalBackend(local))
	ctx := context.Background()

	_, err := local.Insert(ctx, "m1", "t", "content")
	require.NoError(t, err)

	commit, kind, err := r.Commitment(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, KindLocal, kind)
	assert.Equal(t, 1, commit.MemoryCount)
	assert.Equal(t, "mock://m1", commit.StorageURI)

	ids, kind, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, KindLocal, kind)
	assert.Equal(t, []string{"m1"}, ids)

	// The higher-priority backends were never consulted.
	assert.Zero(t, remote.attempts)
	assert.Zero(t, sdk.attempts)
}

func TestRouter_FallbackGuarantee(t *testing.T) {
	// Everything above the local store fails; every operation still
	// completes from the emulation store.
	remote := &fakeBackend{kind: KindRemote, err: errors.New("down")}
	sdk := &fakeBackend{kind: KindSDK, err: errors.New("down")}
	r := newRouterWith(remote, sdk)
	ctx := context.Background()

	created, kind, err := r.Create(ctx, "notes", "desc", "default", true)
	require.NoError(t, err)
	assert.Equal(t, KindLocal, kind)
	assert.Len(t, created.MemoryID, 16)
	assert.Equal(t, "mock-canister-"+created.MemoryID, created.CanisterID)

	receipt, _, err := r.Insert(ctx, created.MemoryID, "greeting", "hello world")
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ContentHash)

	results, _, err := r.Search(ctx, created.MemoryID, "hello", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.98, results[0].Similarity)

	commit, _, err := r.Commitment(ctx, created.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, 1, commit.MemoryCount)
}

func TestRouter_ModeReflectsAvailability(t *testing.T) {
	ctx := context.Background()

	// No non-local backends at all.
	r := newRouterWith(nil, nil)
	assert.Equal(t, "mock", r.Mode(ctx))

	// An available SDK backend makes the service "real".
	sdk := &fakeBackend{kind: KindSDK, available: true}
	r = newRouterWith(nil, sdk)
	assert.Equal(t, "real", r.Mode(ctx))

	// A demoted backend no longer counts, even if it reports available.
	sdk.err = errors.New("down")
	r = newRouterWith(nil, sdk)
	_, _, err := r.Insert(ctx, "m1", "t", "content")
	require.NoError(t, err)
	assert.Equal(t, "mock", r.Mode(ctx))
}

func TestGenerateMemoryID(t *testing.T) {
	a := generateMemoryID("notes", "default")
	b := generateMemoryID("notes", "default")

	assert.Len(t, a, 16)
	assert.Len(t, b, 16)
	// Time is part of the seed, so collisions require same-nanosecond calls.
	for _, c := range a {
		assert.Contains(t, "0123456789abcdef", string(c))
	}
}
