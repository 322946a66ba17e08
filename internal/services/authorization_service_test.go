package services

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"claim-oracle/internal/allowance"
	"claim-oracle/internal/models"
	"claim-oracle/internal/signer"
	"claim-oracle/internal/snapshot"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	addrA    = "0x1111111111111111111111111111111111111111"
	addrB    = "0x2222222222222222222222222222222222222222"
	tokenX   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	contract = "0x598e1cebb2a4b7f169eecbbdfcab395438e6ec27"

	// keccak256(addrA ++ tokenX ++ uint256(5e18) ++ uint256(0) ++ contract)
	digestFiveTokensNonceZero = "0xc7f59afd040436adfee3ee09d1059979a3dee74086377e9098e6d02e7ed0c7ba"
)

// fakeChain serves fixed nonce/withdrawn values and records the read order
type fakeChain struct {
	mu           sync.Mutex
	nonce        *big.Int
	withdrawn    *big.Int
	nonceErr     error
	withdrawnErr error
	calls        []string
}

func (f *fakeChain) Nonce(_ context.Context, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "nonce")
	if f.nonceErr != nil {
		return nil, f.nonceErr
	}
	if f.nonce == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(f.nonce), nil
}

func (f *fakeChain) Withdrawn(_ context.Context, _, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "balanceOf")
	if f.withdrawnErr != nil {
		return nil, f.withdrawnErr
	}
	if f.withdrawn == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(f.withdrawn), nil
}

func (f *fakeChain) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type failingSigner struct {
	address common.Address
}

func (f failingSigner) Address() common.Address { return f.address }

func (f failingSigner) SignDigest(common.Hash) (signer.Signature, error) {
	return signer.Signature{}, errors.New("hsm unavailable")
}

type recordingHook struct {
	mu        sync.Mutex
	issuances []*models.Issuance
	err       error
}

func (r *recordingHook) RecordIssuance(_ context.Context, issuance *models.Issuance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issuances = append(r.issuances, issuance)
	return r.err
}

// stallingHook blocks until its context is done, like a hung database insert
type stallingHook struct {
	mu   sync.Mutex
	errs []error
}

func (h *stallingHook) RecordIssuance(ctx context.Context, _ *models.Issuance) error {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, ctx.Err())
	return ctx.Err()
}

func (h *stallingHook) PublishAuthorized(ctx context.Context, issuance *models.Issuance) error {
	return h.RecordIssuance(ctx, issuance)
}

func (r *recordingHook) PublishAuthorized(ctx context.Context, issuance *models.Issuance) error {
	return r.RecordIssuance(ctx, issuance)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func newTestService(t *testing.T, chain ChainReader) (*AuthorizationService, *signer.PrivateKeySigner) {
	t.Helper()
	store, err := snapshot.New(map[string]map[string]string{
		addrA: {tokenX: "10"},
	})
	require.NoError(t, err)

	s, err := signer.NewPrivateKeySigner(testKey)
	require.NoError(t, err)

	svc := NewAuthorizationService(allowance.NewCalculator(store, 18), chain, s, common.HexToAddress(contract), quietLogger())
	return svc, s
}

func TestScenario(t *testing.T) {
	chain := &fakeChain{}
	svc, s := newTestService(t, chain)
	ctx := context.Background()

	maxBN, err := svc.MaxBN(ctx, PairRequest{Address: addrA, Token: tokenX})
	require.NoError(t, err)
	assert.True(t, maxBN.Present)
	assert.Equal(t, "10000000000000000000", maxBN.Amount.String())

	result, err := svc.Authorize(ctx, ClaimRequest{Address: addrA, Token: tokenX, Amount: "5000000000000000000"})
	require.NoError(t, err)
	assert.Equal(t, digestFiveTokensNonceZero, result.Hash)
	assert.Len(t, result.Signature, 132)

	recovered, err := signer.Recover(common.HexToHash(result.Hash), common.FromHex(result.Signature))
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)

	_, err = svc.Authorize(ctx, ClaimRequest{Address: addrA, Token: tokenX, Amount: "20000000000000000000"})
	assert.ErrorIs(t, err, ErrAllowanceExceeded)
}

func TestAuthorizeReadsNonceBeforeBalance(t *testing.T) {
	chain := &fakeChain{nonce: big.NewInt(7)}
	svc, _ := newTestService(t, chain)

	result, err := svc.Authorize(context.Background(), ClaimRequest{Address: addrA, Token: tokenX, Amount: "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"nonce", "balanceOf"}, chain.Calls())
	assert.Equal(t, int64(7), result.Nonce.Int64())
}

func TestAuthorizeBoundary(t *testing.T) {
	chain := &fakeChain{withdrawn: tokens(4)}
	svc, _ := newTestService(t, chain)
	ctx := context.Background()

	// exactly the remaining six tokens
	_, err := svc.Authorize(ctx, ClaimRequest{Address: addrA, Token: tokenX, Amount: tokens(6).String()})
	assert.NoError(t, err)

	oneOver := new(big.Int).Add(tokens(6), big.NewInt(1))
	_, err = svc.Authorize(ctx, ClaimRequest{Address: addrA, Token: tokenX, Amount: oneOver.String()})
	assert.ErrorIs(t, err, ErrAllowanceExceeded)

	_, err = svc.Authorize(ctx, ClaimRequest{Address: addrA, Token: tokenX, Amount: "0"})
	assert.NoError(t, err)
}

func TestAuthorizeRejections(t *testing.T) {
	tests := []struct {
		name    string
		chain   *fakeChain
		req     ClaimRequest
		wantErr error
		reads   []string
	}{
		{
			name:    "absent address",
			chain:   &fakeChain{},
			req:     ClaimRequest{Address: addrB, Token: tokenX, Amount: "0"},
			wantErr: ErrNotEntitled,
			reads:   []string{"nonce", "balanceOf"},
		},
		{
			name:    "absent token",
			chain:   &fakeChain{},
			req:     ClaimRequest{Address: addrA, Token: addrB, Amount: "1"},
			wantErr: ErrNotEntitled,
			reads:   []string{"nonce", "balanceOf"},
		},
		{
			name:    "malformed address",
			chain:   &fakeChain{},
			req:     ClaimRequest{Address: "0x1234", Token: tokenX, Amount: "1"},
			wantErr: ErrValidation,
		},
		{
			name:    "malformed token",
			chain:   &fakeChain{},
			req:     ClaimRequest{Address: addrA, Token: "", Amount: "1"},
			wantErr: ErrValidation,
		},
		{
			name:    "negative amount",
			chain:   &fakeChain{},
			req:     ClaimRequest{Address: addrA, Token: tokenX, Amount: "-1"},
			wantErr: ErrValidation,
		},
		{
			name:    "decimal amount",
			chain:   &fakeChain{},
			req:     ClaimRequest{Address: addrA, Token: tokenX, Amount: "1.5"},
			wantErr: ErrValidation,
		},
		{
			name:    "hex amount",
			chain:   &fakeChain{},
			req:     ClaimRequest{Address: addrA, Token: tokenX, Amount: "0x10"},
			wantErr: ErrValidation,
		},
		{
			name:    "empty amount",
			chain:   &fakeChain{},
			req:     ClaimRequest{Address: addrA, Token: tokenX, Amount: ""},
			wantErr: ErrValidation,
		},
		{
			name:    "amount wider than uint256",
			chain:   &fakeChain{},
			req:     ClaimRequest{Address: addrA, Token: tokenX, Amount: new(big.Int).Lsh(big.NewInt(1), 256).String()},
			wantErr: ErrValidation,
		},
		{
			name:    "nonce read fails",
			chain:   &fakeChain{nonceErr: errors.New("rpc down")},
			req:     ClaimRequest{Address: addrA, Token: tokenX, Amount: "1"},
			wantErr: ErrChainRead,
			reads:   []string{"nonce"},
		},
		{
			name:    "balance read fails",
			chain:   &fakeChain{withdrawnErr: errors.New("rpc down")},
			req:     ClaimRequest{Address: addrA, Token: tokenX, Amount: "1"},
			wantErr: ErrChainRead,
			reads:   []string{"nonce", "balanceOf"},
		},
		{
			name:    "fully withdrawn",
			chain:   &fakeChain{withdrawn: tokens(10)},
			req:     ClaimRequest{Address: addrA, Token: tokenX, Amount: "1"},
			wantErr: ErrAllowanceExceeded,
			reads:   []string{"nonce", "balanceOf"},
		},
		{
			name:    "zero amount after over withdrawal",
			chain:   &fakeChain{withdrawn: new(big.Int).Lsh(big.NewInt(1), 70)},
			req:     ClaimRequest{Address: addrA, Token: tokenX, Amount: "0"},
			wantErr: ErrAllowanceExceeded,
			reads:   []string{"nonce", "balanceOf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, tt.chain)
			result, err := svc.Authorize(context.Background(), tt.req)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.reads, tt.chain.Calls())
		})
	}
}

func TestAuthorizeSigningFailure(t *testing.T) {
	store, err := snapshot.New(map[string]map[string]string{addrA: {tokenX: "10"}})
	require.NoError(t, err)
	svc := NewAuthorizationService(allowance.NewCalculator(store, 18), &fakeChain{}, failingSigner{}, common.HexToAddress(contract), quietLogger())

	_, err = svc.Authorize(context.Background(), ClaimRequest{Address: addrA, Token: tokenX, Amount: "1"})
	assert.ErrorIs(t, err, ErrSigning)
	assert.False(t, IsRejection(err))
}

func TestAuthorizeIsCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})
	ctx := context.Background()

	lower, err := svc.Authorize(ctx, ClaimRequest{Address: addrA, Token: tokenX, Amount: tokens(5).String()})
	require.NoError(t, err)
	upper, err := svc.Authorize(ctx, ClaimRequest{Address: "0x" + strings.ToUpper(addrA[2:]), Token: "0x" + strings.ToUpper(tokenX[2:]), Amount: tokens(5).String()})
	require.NoError(t, err)

	assert.Equal(t, digestFiveTokensNonceZero, upper.Hash)
	assert.Equal(t, lower.Hash, upper.Hash)
	assert.Equal(t, lower.Signature, upper.Signature)
}

func TestQueriesForAbsentPairs(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})
	ctx := context.Background()
	req := PairRequest{Address: addrB, Token: tokenX}

	maxBN, err := svc.MaxBN(ctx, req)
	require.NoError(t, err)
	assert.False(t, maxBN.Present)
	assert.Equal(t, "0", maxBN.Amount.String())

	reduced, err := svc.MaxBNReduced(ctx, req)
	require.NoError(t, err)
	assert.False(t, reduced.Present)
	assert.Equal(t, "0", reduced.Amount.String())

	max, err := svc.Max(ctx, req)
	require.NoError(t, err)
	assert.False(t, max.Present)
	assert.Equal(t, "0", max.Amount.String())
}

func TestMaxBNReduced(t *testing.T) {
	tests := []struct {
		name      string
		withdrawn *big.Int
		want      string
	}{
		{name: "nothing withdrawn", withdrawn: big.NewInt(0), want: "10000000000000000000"},
		{name: "partially withdrawn", withdrawn: tokens(4), want: "6000000000000000000"},
		{name: "fully withdrawn", withdrawn: tokens(10), want: "0"},
		{name: "over withdrawn is clamped", withdrawn: tokens(11), want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &fakeChain{withdrawn: tt.withdrawn}
			svc, _ := newTestService(t, chain)
			result, err := svc.MaxBNReduced(context.Background(), PairRequest{Address: addrA, Token: tokenX})
			require.NoError(t, err)
			assert.True(t, result.Present)
			assert.Equal(t, tt.want, result.Amount.String())
			assert.Equal(t, []string{"balanceOf"}, chain.Calls())
		})
	}
}

func TestMaxBNReducedChainFailure(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{withdrawnErr: errors.New("timeout")})
	_, err := svc.MaxBNReduced(context.Background(), PairRequest{Address: addrA, Token: tokenX})
	assert.ErrorIs(t, err, ErrChainRead)
}

func TestMaxReturnsSnapshotDecimal(t *testing.T) {
	chain := &fakeChain{}
	svc, _ := newTestService(t, chain)

	result, err := svc.Max(context.Background(), PairRequest{Address: "0x" + strings.ToUpper(addrA[2:]), Token: tokenX})
	require.NoError(t, err)
	assert.True(t, result.Present)
	assert.Equal(t, "10", result.Amount.String())
	assert.Empty(t, chain.Calls())
}

func TestQueriesRejectMalformedIdentifiers(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})
	ctx := context.Background()
	req := PairRequest{Address: "not-an-address", Token: tokenX}

	_, err := svc.MaxBN(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.MaxBNReduced(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Max(ctx, req)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestHooksReceiveIssuance(t *testing.T) {
	svc, s := newTestService(t, &fakeChain{nonce: big.NewInt(3), withdrawn: tokens(1)})
	recorder := &recordingHook{}
	publisher := &recordingHook{}
	svc.SetIssuanceRecorder(recorder)
	svc.SetEventPublisher(publisher)

	result, err := svc.Authorize(context.Background(), ClaimRequest{RequestID: "req-1", Address: addrA, Token: tokenX, Amount: "42"})
	require.NoError(t, err)

	require.Len(t, recorder.issuances, 1)
	require.Len(t, publisher.issuances, 1)
	issuance := recorder.issuances[0]
	assert.Equal(t, "req-1", issuance.RequestID)
	assert.Equal(t, addrA, issuance.Address)
	assert.Equal(t, tokenX, issuance.Token)
	assert.Equal(t, contract, issuance.Contract)
	assert.Equal(t, "42", issuance.Amount)
	assert.Equal(t, "3", issuance.Nonce)
	assert.Equal(t, tokens(1).String(), issuance.Withdrawn)
	assert.Equal(t, result.Hash, issuance.Hash)
	assert.Equal(t, result.Signature, issuance.Signature)
	assert.Equal(t, strings.ToLower(s.Address().Hex()), issuance.Signer)
	assert.NotEmpty(t, issuance.ID)
}

func TestHookFailuresDoNotChangeResult(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})
	svc.SetIssuanceRecorder(&recordingHook{err: errors.New("db down")})
	svc.SetEventPublisher(&recordingHook{err: errors.New("nats down")})

	result, err := svc.Authorize(context.Background(), ClaimRequest{Address: addrA, Token: tokenX, Amount: tokens(5).String()})
	require.NoError(t, err)
	assert.Equal(t, digestFiveTokensNonceZero, result.Hash)
}

func TestStalledHooksAreBounded(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})
	hook := &stallingHook{}
	svc.SetIssuanceRecorder(hook)
	svc.SetEventPublisher(hook)
	svc.SetHookTimeout(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Authorize(ctx, ClaimRequest{Address: addrA, Token: tokenX, Amount: tokens(5).String()})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Authorize blocked on a stalled hook")
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	require.Len(t, hook.errs, 2)
	for _, err := range hook.errs {
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
}

func TestSetHookTimeoutKeepsDefault(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})
	svc.SetHookTimeout(0)
	assert.Equal(t, DefaultHookTimeout, svc.hookTimeout)
	svc.SetHookTimeout(-time.Second)
	assert.Equal(t, DefaultHookTimeout, svc.hookTimeout)
}

func TestHooksNotCalledOnRejection(t *testing.T) {
	svc, _ := newTestService(t, &fakeChain{})
	recorder := &recordingHook{}
	svc.SetIssuanceRecorder(recorder)

	_, err := svc.Authorize(context.Background(), ClaimRequest{Address: addrA, Token: tokenX, Amount: tokens(11).String()})
	require.Error(t, err)
	assert.Empty(t, recorder.issuances)
}

func TestParseAmount(t *testing.T) {
	maxUint := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	value, err := ParseAmount(maxUint.String())
	require.NoError(t, err)
	assert.Equal(t, maxUint, value)

	value, err = ParseAmount("007")
	require.NoError(t, err)
	assert.Equal(t, int64(7), value.Int64())

	for _, bad := range []string{"", " 1", "1 ", "+1", "-0", "1e18", "١"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestConcurrentAuthorizations(t *testing.T) {
	svc, s := newTestService(t, &fakeChain{})

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			result, err := svc.Authorize(context.Background(), ClaimRequest{Address: addrA, Token: tokenX, Amount: big.NewInt(amount).String()})
			if !assert.NoError(t, err) {
				return
			}
			recovered, err := signer.Recover(common.HexToHash(result.Hash), common.FromHex(result.Signature))
			assert.NoError(t, err)
			assert.Equal(t, s.Address(), recovered)
		}(int64(i))
	}
	wg.Wait()
}
