// Package signer issues the claim signatures.
//
// Signatures follow the personal-message convention of eth_sign / web3 accounts.sign:
// the 32 digest bytes are prefixed with "\x19Ethereum Signed Message:\n32", hashed with
// keccak256 and signed with secp256k1. The contract recovers the signer with
// ECDSA.recover(toEthSignedMessageHash(digest), signature).
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrSignerClosed returned after Close wiped the key
var ErrSignerClosed = errors.New("signer closed")

// Signature result of signing one digest
type Signature struct {
	// Message the signed digest, 0x-hex (web3 accounts.sign(...).message)
	Message string
	// Bytes r || s || v with v in {27, 28}
	Bytes []byte
}

// Hex 0x-hex encoded signature
func (s Signature) Hex() string {
	return hexutil.Encode(s.Bytes)
}

// PrivateKeySigner signs with a key held in process memory
type PrivateKeySigner struct {
	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewPrivateKeySigner creates a signer from a hex-encoded private key (with or without "0x" prefix)
func NewPrivateKeySigner(privateKeyHex string) (*PrivateKeySigner, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")

	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		// the underlying error can echo key material
		return nil, errors.New("invalid private key")
	}

	return &PrivateKeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the Ethereum address of the signer
func (s *PrivateKeySigner) Address() common.Address {
	return s.address
}

// String keeps the key out of %v formatting
func (s *PrivateKeySigner) String() string {
	return fmt.Sprintf("PrivateKeySigner(%s)", s.address.Hex())
}

// GoString keeps the key out of %#v formatting
func (s *PrivateKeySigner) GoString() string {
	return s.String()
}

// SignDigest signs the personal-message hash of digest
func (s *PrivateKeySigner) SignDigest(digest common.Hash) (Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.key == nil {
		return Signature{}, ErrSignerClosed
	}

	sig, err := crypto.Sign(accounts.TextHash(digest.Bytes()), s.key)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign: %w", err)
	}

	// Adjust v value for Ethereum (recovery ID 0/1 → 27/28)
	sig[crypto.RecoveryIDOffset] += 27

	return Signature{
		Message: digest.Hex(),
		Bytes:   sig,
	}, nil
}

// SelfCheck signs a fixed digest and verifies the signature recovers to Address
func (s *PrivateKeySigner) SelfCheck() error {
	digest := crypto.Keccak256Hash([]byte("claim-oracle signer self check"))
	sig, err := s.SignDigest(digest)
	if err != nil {
		return err
	}
	recovered, err := Recover(digest, sig.Bytes)
	if err != nil {
		return err
	}
	if recovered != s.address {
		return fmt.Errorf("self check recovered %s, expected %s", recovered.Hex(), s.address.Hex())
	}
	return nil
}

// Close zeroes the private scalar; the signer is unusable afterwards
func (s *PrivateKeySigner) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == nil {
		return
	}
	if s.key.D != nil {
		words := s.key.D.Bits()
		for i := range words {
			words[i] = 0
		}
		s.key.D.SetInt64(0)
	}
	s.key = nil
}

// Recover returns the address that produced signature over the personal-message hash of digest
func Recover(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(signature))
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(digest.Bytes()), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
