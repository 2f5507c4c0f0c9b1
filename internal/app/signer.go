package app

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer issues mint authorizations with a process-held private key. The
// encoding mirrors solidityPackedKeccak256 followed by the eth_sign message
// prefix, so standard ecrecover in the contract verifies against Address().
type Signer struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewSigner parses a hex private key (with or without 0x prefix). An empty or
// malformed key is an error; callers treat it as fatal at startup.
func NewSigner(hexKey string) (*Signer, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("signer private key is not set")
	}
	if len(hexKey) > 1 && hexKey[0] == '0' && (hexKey[1] == 'x' || hexKey[1] == 'X') {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	return &Signer{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the signer's public address, the one the contract must be
// configured to trust.
func (s *Signer) Address() common.Address {
	return s.addr
}

// SignMintAuthorization signs the (recipient, quizId, nonce, contract)
// tuple for the completion-NFT mint.
func (s *Signer) SignMintAuthorization(recipient, quizID string, nonce *big.Int, contract string) (string, error) {
	if !common.IsHexAddress(recipient) {
		return "", fmt.Errorf("invalid recipient address %q", recipient)
	}
	if !common.IsHexAddress(contract) {
		return "", fmt.Errorf("invalid contract address %q", contract)
	}
	packed := packAddressStringUint(common.HexToAddress(recipient), quizID, nonce)
	packed = append(packed, common.HexToAddress(contract).Bytes()...)
	return s.signPacked(packed)
}

// SignQuizCreation signs the (creator, quizId, nonce) tuple for the
// creator-NFT mint, which omits the contract address from the packing.
func (s *Signer) SignQuizCreation(creator, quizID string, nonce *big.Int) (string, error) {
	if !common.IsHexAddress(creator) {
		return "", fmt.Errorf("invalid creator address %q", creator)
	}
	return s.signPacked(packAddressStringUint(common.HexToAddress(creator), quizID, nonce))
}

// packAddressStringUint is the abi.encodePacked of (address, string, uint256):
// 20 raw address bytes, the UTF-8 string bytes, then the nonce left-padded
// to 32 bytes. Field order and widths must match the contract exactly.
func packAddressStringUint(addr common.Address, s string, nonce *big.Int) []byte {
	nonceBytes := make([]byte, 32)
	if nonce != nil {
		nonce.FillBytes(nonceBytes)
	}
	packed := make([]byte, 0, 20+len(s)+32)
	packed = append(packed, addr.Bytes()...)
	packed = append(packed, []byte(s)...)
	return append(packed, nonceBytes...)
}

func (s *Signer) signPacked(packed []byte) (string, error) {
	digest := crypto.Keccak256(packed)
	sig, err := crypto.Sign(accounts.TextHash(digest), s.key)
	if err != nil {
		return "", fmt.Errorf("sign authorization: %w", err)
	}
	// Wallet convention expects V in {27, 28}.
	sig[64] += 27
	return hexutil.Encode(sig), nil
}
