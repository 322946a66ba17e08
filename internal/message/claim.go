// Package message builds the claim message the claim contract verifies on chain.
//
// The contract recomputes
//
//	keccak256(abi.encodePacked(claimant, token, amount, nonce, address(this)))
//
// so field order, widths and the absence of padding between fields are part of the wire
// contract and must only change together with the contract.
package message

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PackedLength size of the packed claim: 3 addresses + 2 uint256
const PackedLength = 3*common.AddressLength + 2*32

// ErrInvalidUint256 returned when an integer field is nil, negative or wider than 256 bits
var ErrInvalidUint256 = errors.New("value is not a uint256")

// Claim the 5-tuple signed for one claim
type Claim struct {
	Claimant common.Address
	Token    common.Address
	Amount   *big.Int
	Nonce    *big.Int
	Contract common.Address
}

// Pack tight-packs the claim: address(20) | address(20) | uint256(32) | uint256(32) | address(20)
func (c Claim) Pack() ([]byte, error) {
	amountBytes, err := uint256Bytes(c.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	nonceBytes, err := uint256Bytes(c.Nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	data := make([]byte, 0, PackedLength)
	data = append(data, c.Claimant.Bytes()...)
	data = append(data, c.Token.Bytes()...)
	data = append(data, amountBytes...)
	data = append(data, nonceBytes...)
	data = append(data, c.Contract.Bytes()...)
	return data, nil
}

// Digest keccak256 of the packed claim
func (c Claim) Digest() (common.Hash, error) {
	data, err := c.Pack()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(data), nil
}

// uint256Bytes 32 bytes big-endian (U256)
func uint256Bytes(v *big.Int) ([]byte, error) {
	if v == nil || v.Sign() < 0 || v.BitLen() > 256 {
		return nil, ErrInvalidUint256
	}
	out := make([]byte, 32)
	v.FillBytes(out)
	return out, nil
}
