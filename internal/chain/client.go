// Package chain reads the claim contract state the authorizer depends on: the per-claimant
// replay nonce and the amount already withdrawn per (claimant, token).
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"claim-oracle/internal/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// Contract view methods used by the authorizer
const (
	MethodNonce     = "nonce"
	MethodBalanceOf = "balanceOf"
)

// ClaimContractABI minimal ABI of the claim contract: nonce(address), balanceOf(address,address)
const ClaimContractABI = `[
	{
		"constant": true,
		"inputs": [{"name": "account", "type": "address"}],
		"name": "nonce",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "account", "type": "address"}, {"name": "token", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const defaultCallTimeout = 10 * time.Second

// ErrNoEndpoint returned by Dial when no RPC endpoint could be used
var ErrNoEndpoint = errors.New("no usable RPC endpoint")

// LoadABI parses the contract ABI file at path, or the embedded ABI when path is empty,
// and checks that it exposes the two view methods with the expected signatures.
func LoadABI(path string) (abi.ABI, error) {
	source := ClaimContractABI
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to read ABI: %w", err)
		}
		source = string(data)
	}

	parsed, err := abi.JSON(strings.NewReader(source))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	if err := checkMethod(parsed, MethodNonce, 1); err != nil {
		return abi.ABI{}, err
	}
	if err := checkMethod(parsed, MethodBalanceOf, 2); err != nil {
		return abi.ABI{}, err
	}
	return parsed, nil
}

func checkMethod(parsed abi.ABI, name string, addressInputs int) error {
	method, ok := parsed.Methods[name]
	if !ok {
		return fmt.Errorf("ABI has no %s method", name)
	}
	if len(method.Inputs) != addressInputs {
		return fmt.Errorf("ABI method %s takes %d inputs, expected %d", name, len(method.Inputs), addressInputs)
	}
	for _, input := range method.Inputs {
		if input.Type.T != abi.AddressTy {
			return fmt.Errorf("ABI method %s input %q is %s, expected address", name, input.Name, input.Type.String())
		}
	}
	if len(method.Outputs) != 1 || method.Outputs[0].Type.T != abi.UintTy || method.Outputs[0].Type.Size != 256 {
		return fmt.Errorf("ABI method %s must return a single uint256", name)
	}
	return nil
}

// ContractClient reads the claim contract through any ethereum.ContractCaller
type ContractClient struct {
	caller   ethereum.ContractCaller
	contract common.Address
	abi      abi.ABI
	timeout  time.Duration
	logger   *logrus.Logger
	closer   func()
}

// NewContractClient wraps an existing caller (an *ethclient.Client or a test double)
func NewContractClient(caller ethereum.ContractCaller, contract common.Address, parsed abi.ABI, timeout time.Duration, logger *logrus.Logger) *ContractClient {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ContractClient{
		caller:   caller,
		contract: contract,
		abi:      parsed,
		timeout:  timeout,
		logger:   logger,
	}
}

// Dial connects to the first RPC endpoint that answers eth_chainId (and matches expectedChainID
// when it is non-zero).
func Dial(ctx context.Context, endpoints []string, expectedChainID int64, contract common.Address, parsed abi.ABI, timeout time.Duration, logger *logrus.Logger) (*ContractClient, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	lastErr := ErrNoEndpoint
	for i, endpoint := range endpoints {
		log := logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"attempt":  fmt.Sprintf("%d/%d", i+1, len(endpoints)),
		})

		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		client, err := ethclient.DialContext(dialCtx, endpoint)
		if err != nil {
			cancel()
			log.WithError(err).Warn("❌ RPC dial failed")
			lastErr = fmt.Errorf("dial %s: %w", endpoint, err)
			continue
		}

		chainID, err := client.ChainID(dialCtx)
		cancel()
		if err != nil {
			client.Close()
			log.WithError(err).Warn("❌ RPC chain id check failed")
			lastErr = fmt.Errorf("chain id from %s: %w", endpoint, err)
			continue
		}
		if expectedChainID != 0 && chainID.Cmp(big.NewInt(expectedChainID)) != 0 {
			client.Close()
			log.WithField("chain_id", chainID.String()).Warn("❌ RPC endpoint serves a different chain")
			lastErr = fmt.Errorf("endpoint %s serves chain %s, expected %d", endpoint, chainID, expectedChainID)
			continue
		}

		log.WithField("chain_id", chainID.String()).Info("✅ Connected to RPC endpoint")
		c := NewContractClient(client, contract, parsed, timeout, logger)
		c.closer = client.Close
		return c, nil
	}

	return nil, lastErr
}

// Contract address being read
func (c *ContractClient) Contract() common.Address {
	return c.contract
}

// Nonce current replay nonce of account
func (c *ContractClient) Nonce(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.callUint256(ctx, MethodNonce, account)
}

// Withdrawn cumulative amount account has withdrawn of token, in smallest units
func (c *ContractClient) Withdrawn(ctx context.Context, account, token common.Address) (*big.Int, error) {
	return c.callUint256(ctx, MethodBalanceOf, account, token)
}

// Close releases the RPC connection when the client owns it
func (c *ContractClient) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func (c *ContractClient) callUint256(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	start := time.Now()
	value, err := c.call(ctx, method, args...)
	metrics.ChainReadDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ChainReadsTotal.WithLabelValues(method, "error").Inc()
		c.logger.WithFields(logrus.Fields{
			"method":   method,
			"contract": c.contract.Hex(),
			"error":    err.Error(),
		}).Warn("Claim contract read failed")
		return nil, err
	}
	metrics.ChainReadsTotal.WithLabelValues(method, "ok").Inc()
	return value, nil
}

func (c *ContractClient) call(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg := ethereum.CallMsg{
		To:   &c.contract,
		Data: data,
	}
	result, err := c.caller.CallContract(callCtx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	unpacked, err := c.abi.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(unpacked) == 0 {
		return nil, fmt.Errorf("empty result from %s", method)
	}

	value, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T for %s", unpacked[0], method)
	}
	return value, nil
}
