package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"claim-oracle/internal/allowance"
	"claim-oracle/internal/message"
	"claim-oracle/internal/metrics"
	"claim-oracle/internal/models"
	"claim-oracle/internal/signer"
	"claim-oracle/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var uintPattern = regexp.MustCompile(`^[0-9]+$`)

// ChainReader reads the claim contract state
type ChainReader interface {
	Nonce(ctx context.Context, account common.Address) (*big.Int, error)
	Withdrawn(ctx context.Context, account, token common.Address) (*big.Int, error)
}

// DigestSigner signs claim digests
type DigestSigner interface {
	Address() common.Address
	SignDigest(digest common.Hash) (signer.Signature, error)
}

// IssuanceRecorder persists issued signatures (audit log)
type IssuanceRecorder interface {
	RecordIssuance(ctx context.Context, issuance *models.Issuance) error
}

// EventPublisher announces issued signatures
type EventPublisher interface {
	PublishAuthorized(ctx context.Context, issuance *models.Issuance) error
}

// PairRequest identifies one (claimant, token) pair
type PairRequest struct {
	RequestID string
	Address   string
	Token     string
}

// ClaimRequest request for a claim signature; Amount is a base-10 integer in smallest units
type ClaimRequest struct {
	RequestID string
	Address   string
	Token     string
	Amount    string
}

// AmountResult amount in smallest units. Present is false when the pair is not in the snapshot.
type AmountResult struct {
	Amount  *big.Int
	Present bool
}

// AllocationResult allocation as written in the snapshot
type AllocationResult struct {
	Amount  json.Number
	Present bool
}

// AuthorizeResult issued claim signature
type AuthorizeResult struct {
	Hash      string // 0x-hex digest that was signed
	Signature string // 0x-hex r||s||v
	Nonce     *big.Int
	Withdrawn *big.Int
	Amount    *big.Int
}

// AuthorizationService decides claims and issues signatures for the allowed ones
type AuthorizationService struct {
	calculator *allowance.Calculator
	chain      ChainReader
	signer     DigestSigner
	contract   common.Address
	logger     *logrus.Logger

	recorder    IssuanceRecorder
	publisher   EventPublisher
	hookTimeout time.Duration
}

// DefaultHookTimeout bound on each audit log or event hook call
const DefaultHookTimeout = 5 * time.Second

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(calculator *allowance.Calculator, chain ChainReader, digestSigner DigestSigner, contract common.Address, logger *logrus.Logger) *AuthorizationService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthorizationService{
		calculator:  calculator,
		chain:       chain,
		signer:      digestSigner,
		contract:    contract,
		logger:      logger,
		hookTimeout: DefaultHookTimeout,
	}
}

// SetIssuanceRecorder enables the audit log
func (s *AuthorizationService) SetIssuanceRecorder(recorder IssuanceRecorder) {
	s.recorder = recorder
}

// SetHookTimeout bounds each hook call; non-positive values keep the default
func (s *AuthorizationService) SetHookTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.hookTimeout = timeout
	}
}

// SetEventPublisher enables authorization events
func (s *AuthorizationService) SetEventPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// Contract address signatures are bound to
func (s *AuthorizationService) Contract() common.Address {
	return s.contract
}

// SignerAddress address the contract must trust
func (s *AuthorizationService) SignerAddress() common.Address {
	return s.signer.Address()
}

// Decimals allocation decimal exponent
func (s *AuthorizationService) Decimals() uint8 {
	return s.calculator.Decimals()
}

// MaxBN full allocation in smallest units. No chain read.
func (s *AuthorizationService) MaxBN(ctx context.Context, req PairRequest) (*AmountResult, error) {
	start := time.Now()
	log := s.entry(OperationMaxBN, req.RequestID)

	_, address, _, token, err := parsePair(req.Address, req.Token)
	if err != nil {
		s.finish(log, OperationMaxBN, start, outcomeFor(err), err)
		return nil, err
	}

	amount, ok, err := s.calculator.Max(address, token)
	if err != nil {
		err = fmt.Errorf("allocation for %s/%s: %w", address, token, err)
		s.finish(log, OperationMaxBN, start, outcomeFor(err), err)
		return nil, err
	}

	s.finish(log, OperationMaxBN, start, presentOutcome(ok), nil)
	return &AmountResult{Amount: amount, Present: ok}, nil
}

// MaxBNReduced allocation minus the amount already withdrawn, clamped at zero. One chain read.
func (s *AuthorizationService) MaxBNReduced(ctx context.Context, req PairRequest) (*AmountResult, error) {
	start := time.Now()
	log := s.entry(OperationMaxBNReduced, req.RequestID)

	account, address, tokenAddr, token, err := parsePair(req.Address, req.Token)
	if err != nil {
		s.finish(log, OperationMaxBNReduced, start, outcomeFor(err), err)
		return nil, err
	}

	withdrawn, err := s.chain.Withdrawn(ctx, account, tokenAddr)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrChainRead, err)
		s.finish(log, OperationMaxBNReduced, start, outcomeFor(err), err)
		return nil, err
	}

	_, ok := s.calculator.Allocation(address, token)
	remaining, err := s.calculator.Remaining(address, token, withdrawn)
	if err != nil {
		err = fmt.Errorf("allocation for %s/%s: %w", address, token, err)
		s.finish(log, OperationMaxBNReduced, start, outcomeFor(err), err)
		return nil, err
	}

	s.finish(log, OperationMaxBNReduced, start, presentOutcome(ok), nil)
	return &AmountResult{Amount: remaining, Present: ok}, nil
}

// Max allocation exactly as written in the snapshot. No chain read.
func (s *AuthorizationService) Max(ctx context.Context, req PairRequest) (*AllocationResult, error) {
	start := time.Now()
	log := s.entry(OperationMax, req.RequestID)

	_, address, _, token, err := parsePair(req.Address, req.Token)
	if err != nil {
		s.finish(log, OperationMax, start, outcomeFor(err), err)
		return nil, err
	}

	allocation, ok := s.calculator.Allocation(address, token)
	s.finish(log, OperationMax, start, presentOutcome(ok), nil)
	if !ok {
		return &AllocationResult{Amount: json.Number("0")}, nil
	}
	return &AllocationResult{Amount: allocation.Amount, Present: true}, nil
}

// Authorize runs the full authorization flow and signs the claim when amount fits in the
// remaining allowance. The nonce is always read before the withdrawn balance.
func (s *AuthorizationService) Authorize(ctx context.Context, req ClaimRequest) (*AuthorizeResult, error) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	f := &flow{log: s.entry(OperationAuthorize, req.RequestID)}
	f.enter(StateReceived)

	result, err := s.authorize(ctx, req, f)
	if err != nil {
		f.enter(StateRejected)
		s.finish(f.log, OperationAuthorize, start, outcomeFor(err), err)
		return nil, err
	}

	f.enter(StateAuthorized)
	s.finish(f.log, OperationAuthorize, start, metrics.OutcomeOK, nil)
	return result, nil
}

func (s *AuthorizationService) authorize(ctx context.Context, req ClaimRequest, f *flow) (*AuthorizeResult, error) {
	f.enter(StateValidating)
	account, address, tokenAddr, token, err := parsePair(req.Address, req.Token)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	f.enter(StateFetchingNonce)
	nonce, err := s.chain.Nonce(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainRead, err)
	}

	f.enter(StateFetchingBalance)
	withdrawn, err := s.chain.Withdrawn(ctx, account, tokenAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainRead, err)
	}

	f.enter(StateComputingAllowance)
	if _, ok := s.calculator.Allocation(address, token); !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotEntitled, address, token)
	}
	allowed, err := s.calculator.Allows(address, token, amount, withdrawn)
	if err != nil {
		return nil, fmt.Errorf("allocation for %s/%s: %w", address, token, err)
	}
	if !allowed {
		return nil, fmt.Errorf("%w: requested %s, withdrawn %s", ErrAllowanceExceeded, amount, withdrawn)
	}

	f.enter(StateSigning)
	claim := message.Claim{
		Claimant: account,
		Token:    tokenAddr,
		Amount:   amount,
		Nonce:    nonce,
		Contract: s.contract,
	}
	digest, err := claim.Digest()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	sig, err := s.signer.SignDigest(digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	metrics.SignaturesIssued.Inc()

	result := &AuthorizeResult{
		Hash:      sig.Message,
		Signature: sig.Hex(),
		Nonce:     nonce,
		Withdrawn: withdrawn,
		Amount:    amount,
	}

	f.log.WithFields(logrus.Fields{
		"address": address,
		"token":   token,
		"amount":  amount.String(),
		"nonce":   nonce.String(),
		"hash":    result.Hash,
	}).Info("✅ Claim signature issued")

	s.afterIssuance(ctx, f.log, &models.Issuance{
		ID:        uuid.New().String(),
		RequestID: req.RequestID,
		Address:   address,
		Token:     token,
		Contract:  utils.LowerHex(s.contract),
		Amount:    amount.String(),
		Nonce:     nonce.String(),
		Withdrawn: withdrawn.String(),
		Hash:      result.Hash,
		Signature: result.Signature,
		Signer:    utils.LowerHex(s.signer.Address()),
		CreatedAt: time.Now().UTC(),
	})

	return result, nil
}

// afterIssuance hands the issuance to the audit log and event hooks. Their failures are
// logged and counted only.
func (s *AuthorizationService) afterIssuance(ctx context.Context, log *logrus.Entry, issuance *models.Issuance) {
	// the signature is already issued; a client disconnect must not drop the record,
	// but each hook still gets its own deadline
	base := context.WithoutCancel(ctx)

	if s.recorder != nil {
		hookCtx, cancel := context.WithTimeout(base, s.hookTimeout)
		err := s.recorder.RecordIssuance(hookCtx, issuance)
		cancel()
		if err != nil {
			metrics.AuditWriteFailures.Inc()
			log.WithError(err).Error("❌ Failed to record issuance")
		}
	}
	if s.publisher != nil {
		hookCtx, cancel := context.WithTimeout(base, s.hookTimeout)
		err := s.publisher.PublishAuthorized(hookCtx, issuance)
		cancel()
		if err != nil {
			metrics.EventPublishFailures.Inc()
			log.WithError(err).Warn("⚠️ Failed to publish authorization event")
		}
	}
}

func (s *AuthorizationService) entry(operation, requestID string) *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"operation":  operation,
		"request_id": requestID,
	})
}

func (s *AuthorizationService) finish(log *logrus.Entry, operation string, start time.Time, outcome string, err error) {
	metrics.RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	metrics.RequestsTotal.WithLabelValues(operation, outcome).Inc()

	if err == nil {
		return
	}
	log = log.WithField("outcome", outcome).WithError(err)
	if outcome == metrics.OutcomeError {
		log.Warn("Claim request failed")
		return
	}
	log.Info("Claim request rejected")
}

// flow tracks the state of one authorization
type flow struct {
	log   *logrus.Entry
	state State
}

func (f *flow) enter(state State) {
	f.log.WithFields(logrus.Fields{
		"from": f.state,
		"to":   state,
	}).Debug("authorization state")
	f.state = state
}

// ParseAmount parses a base-10 unsigned integer that fits in uint256
func ParseAmount(amount string) (*big.Int, error) {
	if !uintPattern.MatchString(amount) {
		return nil, fmt.Errorf("%w: amount %q is not a base-10 unsigned integer", ErrValidation, amount)
	}
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok || value.BitLen() > 256 {
		return nil, fmt.Errorf("%w: amount %q does not fit in uint256", ErrValidation, amount)
	}
	return value, nil
}

func parsePair(address, token string) (common.Address, string, common.Address, string, error) {
	account, normalizedAddress, err := utils.ParseAddress(address)
	if err != nil {
		return common.Address{}, "", common.Address{}, "", fmt.Errorf("%w: address: %v", ErrValidation, err)
	}
	tokenAddr, normalizedToken, err := utils.ParseAddress(token)
	if err != nil {
		return common.Address{}, "", common.Address{}, "", fmt.Errorf("%w: token: %v", ErrValidation, err)
	}
	return account, normalizedAddress, tokenAddr, normalizedToken, nil
}

func presentOutcome(present bool) string {
	if present {
		return metrics.OutcomeOK
	}
	return metrics.OutcomeZero
}

// outcomeFor separates ordinary rejections from infrastructure failures
func outcomeFor(err error) string {
	if IsRejection(err) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
